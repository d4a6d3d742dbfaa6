package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bdobrica/Primus/internal/primus/app"
)

const helpText = `Commands:
  /consent on|off   allow or forbid unprompted messages
  /budget N         set the remaining autonomy budget
  /thumb up|down    rate the last reply
  /new [title]      start a new session
  /summary          summarise the current session
  /tick             run one autonomy check now
  /status           show engine state
  /quit             exit`

// repl is the interactive loop. All writes to out happen on the goroutine
// running run.
type repl struct {
	app *app.App
	in  io.Reader
	out io.Writer
}

func newREPL(a *app.App, in io.Reader, out io.Writer) *repl {
	return &repl{app: a, in: in, out: out}
}

// run reads lines until EOF, /quit, or ctx is cancelled. Proactive messages
// are printed between turns.
func (r *repl) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.app.Messages():
			r.print(msg)
		case line, ok := <-lines:
			if !ok {
				r.flush()
				return nil
			}
			if quit := r.handle(ctx, strings.TrimSpace(line)); quit {
				r.flush()
				return nil
			}
		}
	}
}

// flush prints proactive messages that are already waiting.
func (r *repl) flush() {
	for {
		select {
		case msg := <-r.app.Messages():
			r.print(msg)
		default:
			return
		}
	}
}

func (r *repl) print(msg app.Message) {
	fmt.Fprintf(r.out, "primus* %s\n", msg.Text)
}

// handle processes one line and reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		out, err := r.app.Respond(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "primus> %s\n", out.Text)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/consent":
		on, ok := parseSwitch(arg, "on", "off")
		if !ok {
			fmt.Fprintln(r.out, "usage: /consent on|off")
			return false
		}
		r.report(r.app.SetConsent(ctx, on), "consent "+arg)
	case "/budget":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			fmt.Fprintln(r.out, "usage: /budget N")
			return false
		}
		r.report(r.app.ResetBudget(ctx, n), fmt.Sprintf("budget %d", n))
	case "/thumb":
		up, ok := parseSwitch(arg, "up", "down")
		if !ok {
			fmt.Fprintln(r.out, "usage: /thumb up|down")
			return false
		}
		reward := r.app.Feedback(up)
		fmt.Fprintf(r.out, "reward %.2f\n", reward.Value)
	case "/new":
		id, err := r.app.NewSession(ctx, arg)
		r.report(err, fmt.Sprintf("session %d", id))
	case "/summary":
		digest, err := r.app.Digest(ctx)
		r.report(err, digest)
	case "/tick":
		res, err := r.app.Tick(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return false
		}
		if res.Skipped() {
			fmt.Fprintf(r.out, "skipped: %s\n", res.Skip)
			return false
		}
		fmt.Fprintf(r.out, "%s: %s\n", res.Plan.Action, res.Plan.Reason)
		r.app.DeliverPending(ctx)
	case "/status":
		s := r.app.Snapshot(ctx)
		fmt.Fprintf(r.out, "session %d, turns %d, consent %t, budget %d, llm %s\n",
			s.SessionID, s.TurnCount, s.Consent, s.BudgetRemaining, s.Breaker)
	default:
		fmt.Fprintf(r.out, "unknown command %s, try /help\n", cmd)
	}
	return false
}

func (r *repl) report(err error, ok string) {
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, ok)
}

func parseSwitch(arg, yes, no string) (bool, bool) {
	switch strings.ToLower(arg) {
	case yes:
		return true, true
	case no:
		return false, true
	}
	return false, false
}
