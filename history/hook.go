package history

import (
	"context"
	"time"

	"anyvoice/log"
	"anyvoice/pipeline"
)

const writeTimeout = 5 * time.Second

// Record stores a finished session. It is meant for pipeline.Config.OnFinish
// and never fails the caller; write errors are logged.
func (s *Store) Record(sess pipeline.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.Add(ctx, EntryFromSession(sess)); err != nil {
		log.Warnf("history: save session %s: %v", sess.ID, err)
	}
}
