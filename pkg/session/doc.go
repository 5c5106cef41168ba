/*
Package session keeps live incident runs and serializes access to them.

A Manager owns one *domain.Session per (workflow, incident) key. Starts and deletes
for a key are serialized through ref-counted local mutexes and, when configured, a
ports.DistributedLocker shared by every replica. Submissions never queue: a second
submission for a key that is already submitting is rejected with
domain.ErrSubmissionInFlight.
*/
package session
