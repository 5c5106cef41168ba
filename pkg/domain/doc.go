/*
Package domain contains the core models of the Playbook traversal engine.

It defines the question graph vocabulary (QuestionNode, Option, QuestionType), the
records produced while an operator walks the graph (AnswerRecord, CompletedAnswer),
the durable resumption record (ProgressSnapshot) and the live Session value the
runtime transitions. The package is pure: no I/O, no persistence.

# Key Entities

  - QuestionNode: one step of a workflow (MultipleChoice, Subjective, Checkbox or Instruction).
  - AnswerRecord: the payload committed to the remote authority for one node.
  - ProgressSnapshot: resumable progress for one (workflow, incident) pair.
  - Session: the in-memory traversal state (phase, completed set, cursor).
*/
package domain
