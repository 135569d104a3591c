/*
Package session serializes access to conversations.

Two turns for the same conversation id never overlap: a reference-counted
keyed mutex covers a single process, and an optional DistributedLocker
extends the guarantee across replicas sharing a checkpoint store.
*/
package session
