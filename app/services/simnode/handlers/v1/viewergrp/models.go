package viewergrp

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

type nodeStatus struct {
	peer.Status
	Pending     int     `json:"pending"`
	Orphans     int     `json:"orphans"`
	BlockReward float64 `json:"block_reward"`
	Difficulty  uint    `json:"difficulty"`
	Valid       bool    `json:"valid"`
}

type tx struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	FromID    database.AccountID `json:"from"`
	FromName  string             `json:"from_name"`
	ToID      database.AccountID `json:"to"`
	ToName    string             `json:"to_name"`
	Amount    float64            `json:"amount"`
	Fee       float64            `json:"fee"`
	TimeStamp uint64             `json:"timestamp"`
	Signature string             `json:"sig"`
}

type block struct {
	Number        uint64 `json:"number"`
	PrevBlockHash string `json:"prev_block_hash"`
	TimeStamp     uint64 `json:"timestamp"`
	Nonce         uint64 `json:"nonce"`
	TransRoot     string `json:"trans_root"`
	Hash          string `json:"hash"`
	Trans         []tx   `json:"trans"`
}

type balance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance float64            `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latest_block"`
	Total       float64   `json:"total"`
	Balances    []balance `json:"balances"`
}
