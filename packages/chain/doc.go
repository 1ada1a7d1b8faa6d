// Package chain runs a named sequence of steps with attached cleanups.
//
// Each step may attach a cleanup spec. The cleanup is pushed onto the
// chain's stack before the step's primary request is sent, so it is owed
// even when the primary fails. Cleanup drains the stack in LIFO order,
// keeps going past failures, and reports all of them at once:
//
//	c := chain.New("Add Dataset", exec)
//	defer c.Cleanup(context.Background())
//
//	step := c.Step("Add dataset")
//	step.Spec().Post("/datasets").WithFixture("Dataset", nil).ExpectStatus(201).Stores("id", "pid")
//	step.Clean().Delete("/datasets/${id}").ExpectStatus(200)
//	if _, err := step.Execute(ctx); err != nil {
//		return err
//	}
//
// A chain is Open until Cleanup starts (Draining) and Closed once the stack
// is empty. Closed chains reject new steps with ErrChainClosed.
package chain
