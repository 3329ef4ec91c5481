// Package store defines checkpoint persistence for conversation state.
//
// A checkpoint is an immutable snapshot of one conversation's state; each
// turn appends exactly one. Backends live in the memory, postgres, redis and
// sqlite sub-packages; all implement ConversationStore with append-only,
// version-ordered semantics. StateStore is the facade the router uses: it
// turns a missing conversation into a fresh empty state and wraps backend
// failures in ErrStorageUnavailable.
package store
