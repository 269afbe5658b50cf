// Package ethereum implements chain.Provider against an EVM JSON-RPC node
// using go-ethereum. All raw log/topic handling stays inside this package.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/lottoloop/chain-custody/internal/chain"
	"github.com/lottoloop/chain-custody/internal/domain"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

type Client struct {
	eth     *ethclient.Client
	token   common.Address
	chainID *big.Int
	abi     abi.ABI
}

// Dial connects to the JSON-RPC endpoint and binds the stable token contract.
func Dial(ctx context.Context, rpcURL, tokenAddress string, chainID int64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "ethclient.DialContext")
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "abi.JSON(erc20)")
	}
	if !common.IsHexAddress(tokenAddress) {
		return nil, errors.Errorf("invalid token address: %q", tokenAddress)
	}
	return &Client{
		eth:     eth,
		token:   common.HexToAddress(tokenAddress),
		chainID: big.NewInt(chainID),
		abi:     parsed,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	height, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "eth.BlockNumber")
	}
	return height, nil
}

func (c *Client) TransferEvents(ctx context.Context, fromBlock, toBlock uint64) ([]chain.TransferEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.token},
		Topics:    [][]common.Hash{{transferTopic}},
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "eth.FilterLogs [%d,%d]", fromBlock, toBlock)
	}

	events := make([]chain.TransferEvent, 0, len(logs))
	for _, lg := range logs {
		// Transfer(address indexed from, address indexed to, uint256 value)
		if len(lg.Topics) != 3 || lg.Removed {
			continue
		}
		amount := new(big.Int).SetBytes(lg.Data)
		events = append(events, chain.TransferEvent{
			TxHash:      lg.TxHash.Hex(),
			From:        strings.ToLower(common.BytesToAddress(lg.Topics[1].Bytes()).Hex()),
			To:          strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex()),
			Amount:      domain.AmountFromUnits(amount),
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

func (c *Client) Receipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, chain.ErrReceiptNotFound
		}
		return nil, errors.Wrapf(err, "eth.TransactionReceipt %s", txHash)
	}
	return &chain.Receipt{
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "eth.BalanceAt %s", address)
	}
	return balance, nil
}

func (c *Client) TokenBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	input, err := c.abi.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "abi.Pack(balanceOf)")
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.token, Data: input}, nil)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "eth.CallContract balanceOf %s", address)
	}
	results, err := c.abi.Unpack("balanceOf", out)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "abi.Unpack(balanceOf)")
	}
	units, ok := results[0].(*big.Int)
	if !ok {
		return decimal.Zero, errors.New("balanceOf returned unexpected type")
	}
	return domain.AmountFromUnits(units), nil
}

func (c *Client) SubmitTransfer(ctx context.Context, key *ecdsa.PrivateKey, to string, amount decimal.Decimal) (string, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", errors.Wrapf(err, "eth.PendingNonceAt %s", from.Hex())
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "eth.SuggestGasPrice")
	}

	input, err := c.abi.Pack("transfer", common.HexToAddress(to), domain.UnitsFromAmount(amount))
	if err != nil {
		return "", errors.Wrap(err, "abi.Pack(transfer)")
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &c.token,
		Data: input,
	})
	if err != nil {
		return "", errors.Wrap(err, "eth.EstimateGas")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.token,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return "", errors.Wrap(err, "types.SignTx")
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrapf(err, "eth.SendTransaction %s", signed.Hash().Hex())
	}

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return signed.Hash().Hex(), errors.Wrapf(err, "bind.WaitMined %s", signed.Hash().Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return signed.Hash().Hex(), errors.Errorf("transfer %s reverted", signed.Hash().Hex())
	}
	return signed.Hash().Hex(), nil
}
