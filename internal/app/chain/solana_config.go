package chain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"idp-node/pkg/logger"
	"idp-node/pkg/utilities"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type SolanaConfigJson struct {
	RpcURL                string `json:"rpc_url"`
	WsURL                 string `json:"ws_url"`
	ProgramID             string `json:"program_id"`
	PayerKeypairPath      string `json:"payer_keypair_path"`
	ConfirmTimeoutSeconds int    `json:"confirm_timeout_seconds"`
}

type SolanaConfig struct {
	RpcURL           string
	WsURL            string
	ProgramID        string
	PayerKeypairPath string
	ConfirmTimeout   time.Duration
}

func (scj SolanaConfigJson) ConvertToDomain() SolanaConfig {
	timeout := scj.ConfirmTimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}

	keypairPath := utilities.EnvOrDefault("PAYER_KEYPAIR_PATH", scj.PayerKeypairPath)
	if keypairPath == "" {
		homeDir, _ := os.UserHomeDir()
		keypairPath = filepath.Join(homeDir, ".config", "solana", "id.json")
	}

	return SolanaConfig{
		RpcURL:           utilities.EnvOrDefault("SOLANA_RPC_URL", scj.RpcURL),
		WsURL:            utilities.EnvOrDefault("SOLANA_WS_URL", scj.WsURL),
		ProgramID:        utilities.EnvOrDefault("PROGRAM_ID", scj.ProgramID),
		PayerKeypairPath: keypairPath,
		ConfirmTimeout:   time.Duration(timeout) * time.Second,
	}
}

type Keys struct {
	ProgramID       solana.PublicKey
	PayerPublicKey  solana.PublicKey
	PayerPrivateKey solana.PrivateKey
}

func LoadSolanaKeys(cfg SolanaConfig, log *logger.Logger) (*Keys, error) {
	if cfg.ProgramID == "" {
		return nil, fmt.Errorf("program id is not set (use your deployed program id)")
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", cfg.ProgramID, err)
	}

	payerPriv, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.PayerKeypairPath)
	if err != nil {
		return nil, fmt.Errorf("reading payer keypair from %s failed: %w", cfg.PayerKeypairPath, err)
	}

	keys := &Keys{
		ProgramID:       programID,
		PayerPublicKey:  payerPriv.PublicKey(),
		PayerPrivateKey: payerPriv,
	}

	log.Debugf("ProgramID: %s", keys.ProgramID.String())
	log.Debugf("Payer: %s", keys.PayerPublicKey.String())

	return keys, nil
}

func ValidateProgramExecutable(ctx context.Context, rpcClient *rpc.Client, programID solana.PublicKey) error {
	acc, err := rpcClient.GetAccountInfo(ctx, programID)
	if err != nil {
		return fmt.Errorf("GetAccountInfo(program) failed: %w", err)
	}
	if acc == nil || acc.Value == nil || !acc.Value.Executable {
		return fmt.Errorf("program id %s is not an executable account", programID)
	}
	return nil
}
