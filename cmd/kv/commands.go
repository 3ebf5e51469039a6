package kv

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Saves the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := rpcClient.Save(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return report(cmd, args[0], code, savesvc.RetCSuccess)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Loads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, code, err := rpcClient.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if code == savesvc.RetCSuccess {
				fmt.Fprintf(cmd.OutOrStdout(), "key=%s, code=%s, value=%s\n", args[0], code, value)
				return nil
			}
			return report(cmd, args[0], code, savesvc.RetCKeyNotFound)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := rpcClient.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report(cmd, args[0], code, savesvc.RetCSuccess, savesvc.RetCKeyNotFound)
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := rpcClient.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report(cmd, args[0], code, savesvc.RetCExists, savesvc.RetCNotExists)
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Writes all pending values of the server to its store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Flush(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "flushed successfully")
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the statistics of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := rpcClient.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
)

// report prints the result code, codes not in expected are returned as error
func report(cmd *cobra.Command, key string, code savesvc.RetCode, expected ...savesvc.RetCode) error {
	for _, e := range expected {
		if code == e {
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, code=%s\n", key, code)
			return nil
		}
	}
	return fmt.Errorf("operation on %q failed: %s", key, code)
}
