package doctor

func pasteHint() string {
	return "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput"
}
