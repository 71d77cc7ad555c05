package shell

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"jdbm/internal/kv"
)

// RegisterStoreCommands registers the key-value commands on reg.
func RegisterStoreCommands(reg CommandRegistrar) {
	reg.Register("/put", Command{
		Usage:   "/put <key> <value>",
		Help:    "store a value (journaled first)",
		Handler: handlePut,
	})
	reg.Register("/get", Command{
		Usage:   "/get <key>",
		Help:    "print the value of a key",
		Handler: handleGet,
	})
	reg.Register("/del", Command{
		Usage:   "/del <key>",
		Help:    "delete a key (journaled first)",
		Handler: handleDel,
	})
	reg.Register("/exists", Command{
		Usage:   "/exists <key>",
		Help:    "report whether a key is present",
		Handler: handleExists,
	})
	reg.Register("/len", Command{
		Help:    "count the keys in the backend",
		Handler: handleLen,
	})
	reg.Register("/keys", Command{
		Help:    "list keys in sorted order",
		Handler: handleKeys,
	})
	reg.Register("/clear", Command{
		Usage:   "/clear [--no-journal]",
		Help:    "delete every key; --no-journal keeps the journal for /restore",
		Handler: handleClear,
	})
	reg.Register("/restore", Command{
		Help:    "rebuild the backend from the journal",
		Handler: handleRestore,
	})
	reg.Register("/journal", Command{
		Help:    "dump the journal records",
		Handler: handleJournal,
	})
	reg.Register("/stats", Command{
		Help:    "show store metrics",
		Handler: handleStats,
	})
}

func handlePut(ctx CommandContext) bool {
	if len(ctx.Args) < 2 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /put <key> <value>")
		return false
	}
	key := ctx.Args[0]
	value := strings.Join(ctx.Args[1:], " ")
	if err := ctx.Store.Put(key, value); err != nil {
		printErr(ctx, err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "OK %s = %s\r\n", key, value)
	return false
}

func handleGet(ctx CommandContext) bool {
	if len(ctx.Args) != 1 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /get <key>")
		return false
	}
	v, err := ctx.Store.Get(ctx.Args[0])
	if errors.Is(err, kv.ErrNotFound) {
		_, _ = fmt.Fprintf(ctx.Terminal, "%s: not found\r\n", ctx.Args[0])
		return false
	}
	if err != nil {
		printErr(ctx, err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "%s\r\n", v)
	return false
}

func handleDel(ctx CommandContext) bool {
	if len(ctx.Args) != 1 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /del <key>")
		return false
	}
	if err := ctx.Store.Delete(ctx.Args[0]); err != nil {
		printErr(ctx, err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "Deleted %s\r\n", ctx.Args[0])
	return false
}

func handleExists(ctx CommandContext) bool {
	if len(ctx.Args) != 1 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /exists <key>")
		return false
	}
	ok, err := ctx.Store.Exists(ctx.Args[0])
	if err != nil {
		printErr(ctx, err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "%t\r\n", ok)
	return false
}

func handleLen(ctx CommandContext) bool {
	n, err := ctx.Store.Len()
	if err != nil {
		printErr(ctx, err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "%d\r\n", n)
	return false
}

func handleKeys(ctx CommandContext) bool {
	var keys []string
	for k, err := range ctx.Store.Keys() {
		if err != nil {
			printErr(ctx, err)
			return false
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(ctx.Terminal, "(empty)")
		return false
	}
	slices.Sort(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(ctx.Terminal, "%s\r\n", k)
	}
	return false
}

func handleClear(ctx CommandContext) bool {
	journaling := true
	for _, a := range ctx.Args {
		if a != "--no-journal" {
			_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /clear [--no-journal]")
			return false
		}
		journaling = false
	}
	if err := ctx.Store.Clear(journaling); err != nil {
		printErr(ctx, err)
		return false
	}
	if journaling {
		_, _ = fmt.Fprintln(ctx.Terminal, "Cleared store and journal")
	} else {
		_, _ = fmt.Fprintln(ctx.Terminal, "Cleared store (journal kept)")
	}
	return false
}

func handleRestore(ctx CommandContext) bool {
	if err := ctx.Store.RestoreFromJournal(); err != nil {
		printErr(ctx, err)
		return false
	}
	n, err := ctx.Store.Len()
	if err != nil {
		printErr(ctx, err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "Restored %d keys\r\n", n)
	return false
}

func handleJournal(ctx CommandContext) bool {
	n, err := ctx.Store.DumpJournal(ctx.Terminal)
	if err != nil {
		printErr(ctx, err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "(%d records)\r\n", n)
	return false
}

func handleStats(ctx CommandContext) bool {
	if ctx.Stats == nil {
		_, _ = fmt.Fprintln(ctx.Terminal, "Metrics are disabled")
		return false
	}
	families, err := ctx.Stats.Gather()
	if err != nil {
		printErr(ctx, err)
		return false
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, l := range labels {
					pairs = append(pairs, l.GetName()+"="+l.GetValue())
				}
				name += "{" + strings.Join(pairs, ",") + "}"
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			_, _ = fmt.Fprintf(ctx.Terminal, "  %-48s %g\r\n", name, v)
		}
	}
	return false
}

func printErr(ctx CommandContext, err error) {
	_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
}
