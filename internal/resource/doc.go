// Package resource meters what objects of one instance consume together.
//
// A Controller hands out three things:
//
//   - commit budget: bytes of populated chunks across all objects. Commit
//     never blocks; it fails with ErrCommitLimitExceeded so the faulting
//     access can report the exhaustion instead of stalling.
//   - populator slots: a cap on concurrent Populate and WriteBack calls.
//   - IO tokens: a byte-rate limit on the data moved through sources.
//
// A typical population holds a slot and IO tokens for the duration of the
// source call and keeps the committed bytes until the chunk is released:
//
//	if err := rc.Commit(n); err != nil {
//		return err
//	}
//	if err := rc.AcquirePopulator(ctx); err != nil {
//		rc.Uncommit(n)
//		return err
//	}
//	defer rc.ReleasePopulator()
//
// Caches outside the engine (pack frames, blob blocks) charge the same budget.
// A nil *Controller accepts everything.
package resource
