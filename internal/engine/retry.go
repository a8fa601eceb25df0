package engine

import "time"

// flush is the ordered delivery attempt of spec.md §4.5: snapshot unsent
// messages, send in id order, stop at the first failure, then batch
// mark-sent the successful prefix atomically. It never reorders.
func flush(buf *buffer, tr transport, st *statusBox) error {
	unsent, err := buf.enumerateUnsent()
	if err != nil {
		st.setLastError(err)
		return err
	}
	if len(unsent) == 0 {
		return nil
	}

	var sentIDs []int64
	var firstFailure error
	for _, msg := range unsent {
		if err := tr.send(msg.Payload); err != nil {
			firstFailure = err
			break
		}
		sentIDs = append(sentIDs, msg.ID)
	}

	if len(sentIDs) > 0 {
		if err := buf.markSent(sentIDs, time.Now()); err != nil {
			// Persist failure: the messages stay sent=false on disk even
			// though the transport acked them. Accept the at-least-once
			// duplicate on the next flush rather than lying about durability.
			st.setLastError(err)
			return err
		}
		st.addMessagesSent(uint64(len(sentIDs)))
	}

	if firstFailure != nil {
		st.setLastError(firstFailure)
	}

	remaining, err := buf.countUnsent()
	if err == nil {
		st.setBufferedCount(remaining)
	}

	return firstFailure
}
