package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func addClientFlags(cmd *cobra.Command, f *ClientFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", defaultAPIUrl, "daemon API base URL")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 0, "daemon API request timeout")
}

func dial(f ClientFlags) (*APIClient, error) {
	c := NewAPIClient(f.APIUrl, f.APITimeout)
	if !c.IsReachable() {
		return nil, fmt.Errorf("daemon not reachable at %s - start it first with 'streamrec serve'", f.APIUrl)
	}
	return c, nil
}

func printJSON(raw json.RawMessage) {
	var buf any
	if err := json.Unmarshal(raw, &buf); err != nil {
		fmt.Println(string(raw))
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(buf)
}

func newStartCmd() *cobra.Command {
	var f ClientFlags
	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start recording a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(f)
			if err != nil {
				return err
			}
			if err := c.StartRecording(args[0]); err != nil {
				return err
			}
			fmt.Printf("recording started: %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd, &f)
	return cmd
}

func newStopCmd() *cobra.Command {
	var f ClientFlags
	cmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop recording a stream and merge its segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(f)
			if err != nil {
				return err
			}
			out, err := c.StopRecording(args[0])
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	addClientFlags(cmd, &f)
	return cmd
}

func newStatusCmd() *cobra.Command {
	var f ClientFlags
	var name string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recording session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(f)
			if err != nil {
				return err
			}
			out, err := c.Status(name)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "limit to one session")
	addClientFlags(cmd, &f)
	return cmd
}

func newStreamsCmd() *cobra.Command {
	var f ClientFlags
	cmd := &cobra.Command{
		Use:   "streams",
		Short: "Manage streams in the registry",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registry streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(f)
			if err != nil {
				return err
			}
			out, err := c.ListStreams()
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	add := &cobra.Command{
		Use:   "add <name> <src>",
		Short: "Add a stream and start recording it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(f)
			if err != nil {
				return err
			}
			return c.AddStream(args[0], args[1])
		},
	}
	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stream and stop its recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(f)
			if err != nil {
				return err
			}
			return c.DeleteStream(args[0])
		},
	}

	cmd.AddCommand(list, add, del)
	cmd.PersistentFlags().StringVar(&f.APIUrl, "api-url", defaultAPIUrl, "daemon API base URL")
	cmd.PersistentFlags().DurationVar(&f.APITimeout, "api-timeout", 0, "daemon API request timeout")
	return cmd
}
