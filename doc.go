/*
Package playbook is a traversal and resumption engine for incident-response workflows.

A workflow is an ordered graph of questions (multiple choice, free text, checkbox
and instruction steps) served by a remote incident service. Playbook walks an
operator through that graph for one incident at a time. It submits every
answer to the service before moving on and keeps a local progress snapshot, so
an interrupted run resumes at the first unanswered question.

# Concept

The remote service is the authority: it owns the workflows and the answer
history of every incident. The engine only decides which question comes next.
When a run starts, the remote history is reconciled with the local snapshot
and the cursor is replayed through the graph. The remote history wins any
conflict.

The successor of an answered question is chosen by, in order: an explicit
target given by the caller, the link of the chosen option (multiple choice
only), and finally the next question in positional order. A run is complete
once the positionally last question is answered.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/playbook"
		"github.com/aretw0/playbook/pkg/adapters/file"
		"github.com/aretw0/playbook/pkg/adapters/remote"
		"github.com/aretw0/playbook/pkg/domain"
	)

	func main() {
		authority := remote.New("https://incidents.example.com")
		store := file.New(".playbook/progress")

		engine := playbook.New(authority, store)

		ctx := context.Background()
		s, node, err := engine.Current(ctx, "phishing", "INC-1042")
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("%s: question %d: %s", s.Key(), node.ID, node.Text)

		if _, err := engine.Answer(ctx, "phishing", "INC-1042", domain.AnswerInput{Text: "Yes"}); err != nil {
			log.Fatal(domain.DisplayMessage(err))
		}
	}

# Adapters

  - Authorities: pkg/adapters/remote (HTTP incident service) and pkg/adapters/memory (fixtures and tests).
  - Progress stores: pkg/adapters/file, pkg/adapters/sqlite, pkg/adapters/redis and pkg/adapters/memory.
  - Front ends: pkg/runner (terminal), pkg/adapters/http (operator API) and pkg/adapters/mcp (assistants).
*/
package playbook
