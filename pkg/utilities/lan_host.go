package utilities

const (
	LanHostEnvKey = "LAN_HOST_IP"
)

// ResolveLanHost returns the host other nodes should use to reach this one.
// LAN_HOST_IP wins over the configured fallback.
func ResolveLanHost(fallback string) string {
	return EnvOrDefault(LanHostEnvKey, fallback)
}
