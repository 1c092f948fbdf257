package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	fromID  string
	toID    string
	topic   string
	payload string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a knowledge transfer",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&fromID, "from", "f", "", "Identity id of the sending Sigel.")
	sendCmd.Flags().StringVarP(&toID, "to", "t", "", "Identity id of the receiving Sigel.")
	sendCmd.Flags().StringVarP(&topic, "topic", "o", "", "Topic of the knowledge transfer.")
	sendCmd.Flags().StringVarP(&payload, "payload", "d", "", "Knowledge payload to transfer.")
	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("topic")
	sendCmd.MarkFlagRequired("payload")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	tran := transfer.Prepare(fromID, toID, topic, []byte(payload))

	signed, err := tran.Sign(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	data, err := json.Marshal(signed)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/transfer", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	printBody(resp)
}
