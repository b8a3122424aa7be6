package keys

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"idp-node/pkg/logger"
	reasoncodes "idp-node/pkg/reason_codes"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// FileProvider holds the private keys of this node and of the nodes behind it
// when it runs as a proxy. Keys are read from disk by Load and may be
// replaced at runtime by Update.
type FileProvider struct {
	cfg    KeysConfig
	nodeID string
	log    *logger.Logger

	mu   sync.RWMutex
	keys map[string]jwk.Key
}

func NewFileProvider(cfg KeysConfig, nodeID string, log *logger.Logger) *FileProvider {
	return &FileProvider{
		cfg:    cfg,
		nodeID: nodeID,
		log:    log,
		keys:   make(map[string]jwk.Key),
	}
}

func readKeyFile(path string) (jwk.Key, error) {
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := ParseAndValidate(pemData, "")
	if err != nil {
		return nil, err
	}
	if _, ok := key.(jwk.RSAPrivateKey); !ok {
		return nil, reasoncodes.Wrap(reasoncodes.ErrInvalidKeyFormat, fmt.Errorf("%s is not a private key", path))
	}
	return key, nil
}

func (fp *FileProvider) Load() error {
	fp.log.Info("Reading node keys from files")

	loaded := make(map[string]jwk.Key, len(fp.cfg.NodesBehindProxy)+1)

	key, err := readKeyFile(fp.cfg.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("error verifying node private key: %w", err)
	}
	loaded[fp.nodeID] = key

	for _, nodeID := range fp.cfg.NodesBehindProxy {
		path := filepath.Join(fp.cfg.NodeBehindProxyKeyDirPath, nodeID)
		key, err := readKeyFile(path)
		if err != nil {
			return fmt.Errorf("error verifying node behind proxy private key %s: %w", nodeID, err)
		}
		loaded[nodeID] = key
	}

	fp.mu.Lock()
	fp.keys = loaded
	fp.mu.Unlock()

	fp.log.Infof("Loaded %d node keys", len(loaded))
	return nil
}

// Update replaces the private key for nodeID after validating it.
func (fp *FileProvider) Update(nodeID string, pemData []byte) error {
	key, err := ParseAndValidate(pemData, KeyTypeRSA)
	if err != nil {
		return err
	}
	if _, ok := key.(jwk.RSAPrivateKey); !ok {
		return reasoncodes.Wrap(reasoncodes.ErrInvalidKeyFormat, fmt.Errorf("not a private key"))
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.keys[nodeID] = key
	return nil
}

func (fp *FileProvider) PrivateKey(nodeID string) (jwk.Key, error) {
	if nodeID == "" {
		nodeID = fp.nodeID
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()
	key, ok := fp.keys[nodeID]
	if !ok {
		return nil, reasoncodes.New(reasoncodes.ErrNodeKeyNotFound).WithContext(map[string]any{"node_id": nodeID})
	}
	return key, nil
}

func (fp *FileProvider) PublicKey(nodeID string) (*rsa.PublicKey, error) {
	key, err := fp.PrivateKey(nodeID)
	if err != nil {
		return nil, err
	}
	raw, err := jwk.PublicRawKeyOf(key)
	if err != nil {
		return nil, err
	}
	return raw.(*rsa.PublicKey), nil
}

// Sign returns a compact RS256 JWS over payload made with nodeID's key.
func (fp *FileProvider) Sign(nodeID string, payload []byte) (string, error) {
	key, err := fp.PrivateKey(nodeID)
	if err != nil {
		return "", err
	}

	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS256, key))
	if err != nil {
		return "", fmt.Errorf("sign with node key: %w", err)
	}
	return string(signed), nil
}

// VerifySignature checks a compact RS256 JWS against publicKey and returns the payload.
func VerifySignature(publicKey *rsa.PublicKey, signature string) ([]byte, error) {
	return jws.Verify([]byte(signature), jws.WithKey(jwa.RS256, publicKey))
}
