package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Read and write runtime-tunable settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	settingGetCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Read a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			val, err := rt.Store().GetSetting(args[0])
			if err != nil {
				return err
			}
			if val == "" {
				fmt.Println("(unset)")
				return nil
			}
			fmt.Println(val)
			return nil
		},
	}

	settingSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Store().SetSetting(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	}
)

func init() {
	settingCmd.AddCommand(settingGetCmd, settingSetCmd)
	rootCmd.AddCommand(settingCmd)
}
