package keys

import "idp-node/pkg/utilities"

type KeysConfigJson struct {
	PrivateKeyPath            string   `json:"private_key_path"`
	NodeBehindProxyKeyDirPath string   `json:"node_behind_proxy_key_directory"`
	NodesBehindProxy          []string `json:"nodes_behind_proxy"`
}

type KeysConfig struct {
	PrivateKeyPath            string
	NodeBehindProxyKeyDirPath string
	NodesBehindProxy          []string
}

func (kcj KeysConfigJson) ConvertToDomain() KeysConfig {
	return KeysConfig{
		PrivateKeyPath:            utilities.EnvOrDefault("PRIVATE_KEY_PATH", kcj.PrivateKeyPath),
		NodeBehindProxyKeyDirPath: kcj.NodeBehindProxyKeyDirPath,
		NodesBehindProxy:          kcj.NodesBehindProxy,
	}
}
