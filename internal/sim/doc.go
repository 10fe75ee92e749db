// Package sim implements the cooperative scheduler that every test run
// executes on.
//
// ARCHITECTURE:
//
// Single logical thread. Each process (Proc) runs on its own goroutine, but
// the Kernel hands a baton so exactly one process executes at a time. There
// is no parallelism and no preemption: a process runs until it reaches a
// suspension point (Wait, Sleep, Settle, Yield, Queue.Get/Put, a join on
// another process) and then hands the baton back.
//
// Time step:
//  1. Woken processes run in FIFO order.
//  2. Deferred signal writes are applied (a delta cycle). Value changes fire
//     edge triggers, which may wake more processes; go to 1.
//  3. When nothing is runnable and no writes are pending, simulated time
//     advances to the next timer.
//
// Signal writes made with Set become visible only in step 2, so every
// process that wakes on the same edge samples the same settled values.
//
// Kill makes a process exit at its current suspension point via
// runtime.Goexit; its deferred functions run. Run returns when the root
// process finishes (all remaining processes are killed), when the context is
// cancelled, or with ErrStalled when nothing can ever run again.
//
// All sim objects must only be touched by the process holding the baton (or
// by the caller of Run before it starts). No locks are taken.
package sim
