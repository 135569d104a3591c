/*
Package ports defines the driven ports (interfaces) of the dialogue engine.

These interfaces decouple the executor from storage backends, lock services
and classification providers.

# Key Interfaces

  - CheckpointStore: persists and loads ConversationState per conversation id.
  - DistributedLocker: serializes turns of the same conversation across replicas.
  - Oracle: classifies user input into a route label.
*/
package ports
