package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var peerHost string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the node's chain status",
	Run:   statusRun,
}

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Signal the node to start a mining run",
	Run:   mineRun,
}

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Connect the node to a new peer",
	Run:   peerRun,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(peerCmd)
	peerCmd.Flags().StringVarP(&peerHost, "host", "H", "", "Host of the peer to connect to.")
	peerCmd.MarkFlagRequired("host")
}

func statusRun(cmd *cobra.Command, args []string) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/status", url))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	printBody(resp)
}

func mineRun(cmd *cobra.Command, args []string) {
	resp, err := http.Post(fmt.Sprintf("%s/v1/mining/signal", url), "application/json", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	printBody(resp)
}

func peerRun(cmd *cobra.Command, args []string) {
	req := struct {
		Host string `json:"host"`
	}{
		Host: peerHost,
	}

	data, err := json.Marshal(req)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/peer/connect", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	printBody(resp)
}
