package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jdbm/internal/backend/builtin"
	"jdbm/internal/kv"
	"jdbm/internal/shell"
)

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				return s.Put(args[0], args[1])
			})
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				v, err := s.Get(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, v)
				return err
			})
		},
	}
}

func (a *app) delCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "del <key>",
		Aliases: []string{"delete"},
		Short:   "Delete a key; absent keys are not an error",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				return s.Delete(args[0])
			})
		},
	}
}

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Print whether a key is present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				ok, err := s.Exists(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, ok)
				return err
			})
		},
	}
}

func (a *app) lenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "len",
		Short: "Print the number of keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				n, err := s.Len()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, n)
				return err
			})
		},
	}
}

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List keys in sorted order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				var keys []string
				for k, err := range s.Keys() {
					if err != nil {
						return err
					}
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					if _, err := fmt.Fprintln(a.out, k); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	var noJournal bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every key, and the journal unless --no-journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				return s.Clear(!noJournal)
			})
		},
	}
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "keep the journal so restore can rebuild the store")
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Rebuild the backend from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				if err := s.RestoreFromJournal(); err != nil {
					return err
				}
				n, err := s.Len()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.out, "restored %d keys\n", n)
				return err
			})
		},
	}
}

func (a *app) journalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "Dump the journal records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				_, err := s.DumpJournal(a.out)
				return err
			})
		},
	}
}

func (a *app) backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the available backend variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.out, strings.Join(builtin.Registry().Names(), "\n"))
			return err
		},
	}
}

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *kv.Store) error {
				sh := shell.New(s, a.registry)
				if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					old, err := term.MakeRaw(int(f.Fd()))
					if err != nil {
						return fmt.Errorf("raw mode: %w", err)
					}
					defer func() { _ = term.Restore(int(f.Fd()), old) }()
				}
				return sh.Run(readWriter{a.in, a.out})
			})
		},
	}
}

type readWriter struct {
	io.Reader
	io.Writer
}
