package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"keyword_responder/internal/fsstore"
	"keyword_responder/internal/moderation"
	"keyword_responder/internal/replies"
	"keyword_responder/internal/responder"
)

func newWordsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "words",
		Short: "Inspect and edit the reply table file",
	}
	cmd.AddCommand(
		newWordsListCmd(v),
		newWordsAddCmd(v),
		newWordsDeleteCmd(v),
		newWordsFallbackCmd(v),
	)
	return cmd
}

func openRepository(v *viper.Viper) (*replies.Repository, error) {
	env, err := loadEnv(v)
	if err != nil {
		return nil, err
	}
	return replies.NewRepository(env.cfg.WordsFile, env.norm), nil
}

func newWordsListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the reply table in its layered form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository(v)
			if err != nil {
				return err
			}
			doc, err := repo.List()
			if err != nil {
				return err
			}
			return printDocument(cmd.OutOrStdout(), repo.Path(), doc)
		},
	}
}

func printDocument(w io.Writer, path string, doc replies.Document) error {
	data, err := replies.EncodeDocument(fsstore.FormatOf(path), doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newWordsAddCmd(v *viper.Viper) *cobra.Command {
	var layer string
	cmd := &cobra.Command{
		Use:   "add KEY REPLY",
		Short: "Add or replace a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := replies.ParseLayer(layer)
			if err != nil {
				return err
			}
			repo, err := openRepository(v)
			if err != nil {
				return err
			}
			if err := repo.Add(l, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "exact", "Layer: exact|contains|regex.")
	return cmd
}

func newWordsDeleteCmd(v *viper.Viper) *cobra.Command {
	var layer string
	cmd := &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete a key from one layer, or from all of them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := replies.ParseLayer(layer)
			if err != nil {
				return err
			}
			repo, err := openRepository(v)
			if err != nil {
				return err
			}
			removed, err := repo.Delete(l, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("key not found: %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "Layer to delete from (all when empty).")
	return cmd
}

func newWordsFallbackCmd(v *viper.Viper) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "fallback [REPLY]",
		Short: "Set or clear the fallback reply",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unset == (len(args) == 1) {
				return errors.New("give a REPLY or --clear, not both")
			}
			repo, err := openRepository(v)
			if err != nil {
				return err
			}
			if unset {
				return repo.SetFallback(nil)
			}
			return repo.SetFallback(&args[0])
		},
	}
	cmd.Flags().BoolVar(&unset, "clear", false, "Remove the fallback reply.")
	return cmd
}

func newResolveCmd(v *viper.Viper) *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:   "resolve TEXT",
		Short: "Show the reply a message would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(v)
			if err != nil {
				return err
			}
			store := replies.OpenStore(env.cfg.WordsFile,
				replies.WithNormalizer(env.norm),
				replies.WithZone(env.cfg.CommandZone()),
				replies.WithLogger(env.logger),
			)
			var gate *moderation.Gate
			if env.cfg.ModerationFile != "" {
				gate = moderation.NewGate(moderation.OpenStore(env.cfg.ModerationFile,
					moderation.WithNormalizer(env.norm),
					moderation.WithLogger(env.logger),
				))
			}

			reply, ok := responder.New(gate, store, responder.WithLogger(env.logger)).
				OnIncomingText(cmd.Context(), responder.Message{RawText: args[0], IsGroup: group})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "normalized: %q\n", env.norm.Normalize(args[0]))
			if !ok {
				fmt.Fprintln(out, "no reply")
				return nil
			}
			fmt.Fprintf(out, "reply: %s\n", reply)
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "Treat the message as sent in a group chat.")
	return cmd
}
