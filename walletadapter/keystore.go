package walletadapter

import (
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
)

// keystoreEntry is one project's persisted auth key, hex-encoded so the
// file stays readable for debugging, matching lnd's own posture of
// keeping on-disk formats simple and inspectable rather than a binary blob.
type keystoreEntry struct {
	ProjectIDHash string `json:"project_id_hash"`
	AuthPrivHex   string `json:"auth_priv_hex"`
}

// LoadKeystore reads the auth keys previously saved with SaveKeystore. A
// missing file is not an error — it means no projects have been created
// under this data directory yet.
func LoadKeystore(path string) (map[[32]byte]*btcec.PrivateKey, error) {
	out := make(map[[32]byte]*btcec.PrivateKey)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []keystoreEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	for _, e := range entries {
		idBytes, err := hex.DecodeString(e.ProjectIDHash)
		if err != nil || len(idBytes) != 32 {
			continue
		}
		privBytes, err := hex.DecodeString(e.AuthPrivHex)
		if err != nil {
			continue
		}
		var id [32]byte
		copy(id[:], idBytes)
		priv, _ := btcec.PrivKeyFromBytes(privBytes)
		out[id] = priv
	}
	return out, nil
}

// SaveKeystore writes every auth key in keys to path, overwriting any
// previous contents. Callers hold the keys in memory (via Memory) for the
// life of the process; this is only the durability layer underneath it.
func SaveKeystore(path string, keys map[[32]byte]*btcec.PrivateKey) error {
	entries := make([]keystoreEntry, 0, len(keys))
	for id, priv := range keys {
		entries = append(entries, keystoreEntry{
			ProjectIDHash: hex.EncodeToString(id[:]),
			AuthPrivHex:   hex.EncodeToString(priv.Serialize()),
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
