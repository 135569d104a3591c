/*
Package runner drives a conversation from a line-oriented stream.

The Runner reads one message at a time through an IOHandler, sends it to the
service as a turn and hands the reply back to the handler. Two handlers are
provided: TextHandler for people at a terminal and JSONHandler for scripts
that speak JSON Lines.

# Usage

	r := runner.New(svc,
		runner.WithThreadID("demo"),
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}

Typing "exit" or "quit" ends the loop; "/new" starts a fresh thread.
*/
package runner
