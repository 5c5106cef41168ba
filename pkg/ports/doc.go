/*
Package ports defines the driven ports (interfaces) of the Playbook engine.

These interfaces decouple the traversal logic from the remote backend, the local
progress storage and cross-replica coordination.

# Key Interfaces

  - Authority: the remote system of record for workflows, questions and answers.
  - ProgressStore: durable local persistence of ProgressSnapshots.
  - DistributedLocker: distributed locking for concurrent access to one run.
*/
package ports
