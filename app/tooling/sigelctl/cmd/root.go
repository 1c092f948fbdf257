// Package cmd contains the sigelctl commands for operating a node.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	url      string
	keyName  string
	keysPath string
)

const keyExtension = ".ecdsa"

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	rootCmd.PersistentFlags().StringVarP(&keyName, "key", "k", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&keysPath, "keys-path", "p", "zsigel/keys/", "Path to the directory with private keys.")
}

var rootCmd = &cobra.Command{
	Use:   "sigelctl",
	Short: "Operate a Sigmos node and its Sigel identities",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	name := keyName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(keysPath, name)
}
