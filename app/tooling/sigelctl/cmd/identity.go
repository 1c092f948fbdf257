package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var identityName string

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Register a new Sigel identity bound to your key",
	Run:   identityRun,
}

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List the identities the node knows about",
	Run:   identitiesRun,
}

func init() {
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(identitiesCmd)
	identityCmd.Flags().StringVarP(&identityName, "name", "n", "", "Unique name for the new Sigel.")
	identityCmd.MarkFlagRequired("name")
}

func identityRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}{
		Name:    identityName,
		Address: crypto.PubkeyToAddress(privateKey.PublicKey).String(),
	}

	data, err := json.Marshal(req)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/identity", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	printBody(resp)
}

func identitiesRun(cmd *cobra.Command, args []string) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/identity/list", url))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	printBody(resp)
}

// printBody pretty prints a JSON response body to stdout.
func printBody(resp *http.Response) {
	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		log.Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal(err)
	}
}
