package types

import (
	"encoding/json"
	"fmt"
)

const (
	IPFSScheme      = "ipfs://"
	MintDescription = "This token binds a unique wine collection from tracecork.com on the cardano blockchain."
)

type BatchData struct {
	Info   string `json:"info"`
	MData  string `json:"mdata"`
	MinSrc string `json:"minsrc"`
}

type BatchMeta struct {
	Description string `json:"description"`
	Image       string `json:"image"`
	Name        string `json:"name"`
}

// MintPayload is the request body of the tokenization mint-batch endpoint.
type MintPayload struct {
	BatchData     BatchData `json:"batch_data"`
	BatchMeta     BatchMeta `json:"batch_meta"`
	BatchQuantity []int     `json:"batch_quantity"`
}

// NewMintPayload serializes the wine and the sensor snapshot into a payload
// for a single token. A nil snapshot is encoded as an empty object.
func NewMintPayload(wine *Wine, ipfsURI string, snapshot map[string]any) (*MintPayload, error) {
	info, err := json.Marshal(wine)
	if err != nil {
		return nil, fmt.Errorf("wine serialization error: %w", err)
	}

	if snapshot == nil {
		snapshot = map[string]any{}
	}

	mdata, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("sensor snapshot serialization error: %w", err)
	}

	return &MintPayload{
		BatchData: BatchData{
			Info:   string(info),
			MData:  string(mdata),
			MinSrc: "",
		},
		BatchMeta: BatchMeta{
			Description: MintDescription,
			Image:       ipfsURI,
			Name:        wine.GeneralInfo.CollectionName,
		},
		BatchQuantity: []int{1, 1},
	}, nil
}

// MintReceipt is returned by the tokenization API once a mint is submitted.
type MintReceipt struct {
	TxID       string `json:"txId"`
	TokenRefID string `json:"tokenRefId"`
}

// Image is a downloaded asset image ready to be pushed to IPFS.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

type ChainState string

const (
	ChainPending  ChainState = "pending"
	ChainComplete ChainState = "complete"
	ChainError    ChainState = "error"
)

// TransactionStatus is the on-chain state of a submitted mint transaction.
type TransactionStatus struct {
	Status        ChainState `json:"status"`
	Details       string     `json:"details,omitempty"`
	BlockHeight   int64      `json:"blockHeight,omitempty"`
	Confirmations int        `json:"confirmations,omitempty"`
}
