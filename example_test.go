package playbook_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/dsl"
)

// ExampleNew_memory walks a workflow defined in code against the in-memory authority.
// This is useful for testing, embedded scenarios, or offline demos.
func ExampleNew_memory() {
	wf := dsl.New(7, "phishing")
	wf.MultipleChoice(1, "Did anyone click the link?").
		Option("Yes", 2).
		Option("No", 3)
	wf.Instruction(2, "Reset the credentials of every affected user.")
	wf.Subjective(3, "Anything else worth noting?").Optional()

	authority, err := wf.Authority()
	if err != nil {
		log.Fatal(err)
	}
	engine := playbook.New(authority, memory.NewStore())

	ctx := context.Background()
	s, err := engine.Start(ctx, "phishing", "INC-1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("current:", *s.CurrentQuestionID)

	s, err = engine.Answer(ctx, "phishing", "INC-1", domain.AnswerInput{Text: "Yes"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("current:", *s.CurrentQuestionID)

	s, err = engine.Answer(ctx, "phishing", "INC-1", domain.AnswerInput{Text: "Confirmed"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("current:", *s.CurrentQuestionID)

	s, err = engine.Skip(ctx, "phishing", "INC-1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("phase:", s.Phase)

	// Output:
	// current: 1
	// current: 2
	// current: 3
	// phase: complete
}

// ExampleEngine_Status checks completion from the remote answer history alone.
func ExampleEngine_Status() {
	wf := dsl.New(9, "malware")
	wf.Subjective(1, "Which host?")
	wf.Checkbox(2, "Who isolated it?")
	wf.Answered("INC-7", 1, "web-01").Answered("INC-7", 2, "alice")

	authority, err := wf.Authority()
	if err != nil {
		log.Fatal(err)
	}
	engine := playbook.New(authority, memory.NewStore())

	done, g, err := engine.Status(context.Background(), "malware", "INC-7")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("complete: %v (terminal %d)\n", done, g.Terminal().ID)

	// Output:
	// complete: true (terminal 2)
}
