/*
Package domain contains the core data model of the dialogue engine.

It defines the conversation state that is checkpointed between turns, the
typed scratchpad the tracer maintains, the partial update a node hands back
and the error taxonomy of a turn. This package is kept free of I/O and
persistence concerns.

# Key Entities

  - ConversationState: the persisted snapshot of one conversation (History, Route, Stage, Scratch).
  - Scratch: per-conversation side channel (Turn, ResumeAt, Path, CurrentNode, business Fields).
  - Update: the partial update a node returns (Messages, Route, Stage, ScratchDelta).
  - TurnResult: what the executor returns to the caller at the end of a turn.
*/
package domain
