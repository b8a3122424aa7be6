package chain

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"idp-node/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/sourcegraph/conc"
)

var errNotFinalized = errors.New("transaction not finalized yet")

// SolanaGateway talks to the identity registry program. Slots are used as
// block heights.
type SolanaGateway struct {
	cfg       SolanaConfig
	keys      *Keys
	rpcClient *rpc.Client
	log       *logger.Logger

	lastSeen atomic.Int64
}

func NewSolanaGateway(cfg SolanaConfig, keys *Keys, log *logger.Logger) *SolanaGateway {
	return &SolanaGateway{
		cfg:       cfg,
		keys:      keys,
		rpcClient: rpc.New(cfg.RpcURL),
		log:       log.WithStr("component", "solana-gateway"),
	}
}

func (sg *SolanaGateway) RpcClient() *rpc.Client {
	return sg.rpcClient
}

func (sg *SolanaGateway) buildTransaction(ctx context.Context, envelope Envelope) (*solana.Transaction, error) {
	data, err := envelope.SerializeBorsh()
	if err != nil {
		return nil, fmt.Errorf("serialize %s envelope: %w", envelope.Method, err)
	}

	instruction := solana.NewInstruction(
		sg.keys.ProgramID,
		[]*solana.AccountMeta{
			solana.NewAccountMeta(sg.keys.PayerPublicKey, true, true),
		},
		data,
	)

	latest, err := sg.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		latest.Value.Blockhash,
		solana.TransactionPayer(sg.keys.PayerPublicKey),
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(sg.keys.PayerPublicKey) {
			return &sg.keys.PayerPrivateKey
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func (sg *SolanaGateway) Query(ctx context.Context, method string, params any, out any) (bool, error) {
	envelope, err := NewEnvelope(method, params, "")
	if err != nil {
		return false, err
	}

	tx, err := sg.buildTransaction(ctx, envelope)
	if err != nil {
		return false, err
	}

	res, err := sg.rpcClient.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return false, fmt.Errorf("query %s: %w", method, err)
	}
	if res.Value == nil {
		return false, fmt.Errorf("query %s: empty simulation result", method)
	}
	if res.Value.Err != nil {
		return false, fmt.Errorf("query %s failed: %v", method, res.Value.Err)
	}

	data, found, err := parseReturnData(res.Value.Logs, sg.keys.ProgramID.String())
	if err != nil || !found {
		return false, err
	}
	return decodeResult(data, out)
}

func (sg *SolanaGateway) Transact(ctx context.Context, method string, params any, nonce string) (TxResult, error) {
	if _, err := sg.rpcClient.GetHealth(ctx); err != nil {
		sg.log.Warnf("Chain is not healthy, deferring %s: %v", method, err)
		return Unavailable(), nil
	}

	envelope, err := NewEnvelope(method, params, nonce)
	if err != nil {
		return TxResult{}, err
	}

	tx, err := sg.buildTransaction(ctx, envelope)
	if err != nil {
		return TxResult{}, err
	}

	signature, err := sg.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentFinalized,
		},
	)
	if err != nil {
		sg.log.Errorf(err, "Failed to send %s transaction", method)
		return TxResult{}, err
	}
	sg.log.Debugf("Sent %s transaction: %s", method, signature)

	slot, err := sg.awaitFinalized(ctx, signature)
	if err != nil {
		return TxResult{}, err
	}

	sg.log.Infof("%s committed at slot %d", method, slot)
	return Committed(int64(slot)), nil
}

func (sg *SolanaGateway) awaitFinalized(ctx context.Context, signature solana.Signature) (uint64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = sg.cfg.ConfirmTimeout

	var slot uint64
	operation := func() error {
		statuses, err := sg.rpcClient.GetSignatureStatuses(ctx, true, signature)
		if err != nil {
			return err
		}
		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			return errNotFinalized
		}

		status := statuses.Value[0]
		if status.Err != nil {
			return backoff.Permanent(fmt.Errorf("transaction %s failed: %v", signature, status.Err))
		}
		if status.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
			return errNotFinalized
		}

		slot = status.Slot
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return 0, fmt.Errorf("awaiting finalization of %s: %w", signature, err)
	}
	return slot, nil
}

// LatestBlockHeight returns the last slot delivered to the block subscription,
// or the node's processed slot before the first one arrives.
func (sg *SolanaGateway) LatestBlockHeight(ctx context.Context) (int64, error) {
	if seen := sg.lastSeen.Load(); seen > 0 {
		return seen, nil
	}

	slot, err := sg.rpcClient.GetSlot(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return 0, err
	}
	return int64(slot), nil
}

func (sg *SolanaGateway) SubscribeNewBlocks(ctx context.Context, handler BlockHandler) error {
	client, err := ws.Connect(ctx, sg.cfg.WsURL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", sg.cfg.WsURL, err)
	}
	defer client.Close()

	sub, err := client.SlotSubscribe()
	if err != nil {
		return fmt.Errorf("slot subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	relayCtx, stopRelay := context.WithCancel(ctx)
	relay := newBlockRelay(handler)
	var relayDone conc.WaitGroup
	relayDone.Go(func() { relay.run(relayCtx) })
	defer func() {
		stopRelay()
		relayDone.Wait()
	}()

	var last int64
	first := true
	for {
		got, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		height := int64(got.Slot)
		if !first && height <= last {
			continue
		}

		var missed *int64
		if !first {
			count := height - last - 1
			missed = &count
		}

		first = false
		last = height
		sg.lastSeen.Store(height)

		relay.push(height, missed)
	}
}
