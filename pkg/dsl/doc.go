/*
Package dsl provides a fluent Go builder for incident-response workflows.

It lets tests, demos and embedded hosts describe a workflow in code instead of
a YAML fixture or a live incident service. The result is served by the
in-memory authority.

Example usage:

	wf := dsl.New(7, "phishing")

	wf.MultipleChoice(1, "Did anyone click the link?").
		Option("Yes", 2).
		Option("No", 3)

	wf.Instruction(2, "Reset the credentials of every affected user.")

	wf.Subjective(3, "Anything else worth noting?").Optional()

	wf.Checkbox(4, "Who was notified?").Option("SOC").Option("Legal")

	authority, err := wf.Authority()
	// ... pass authority to playbook.New(...)

Questions are ordered as they are added; the last one added is the terminal question.
*/
package dsl
