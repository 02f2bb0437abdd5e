package provably

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/ruxplay/mesa-engine/internal/lib/random"
)

// Fair derives draw numbers from HMAC-SHA512 over a fresh server seed, a
// caller-supplied client seed and a monotonic nonce. All inputs and the
// resulting hash are returned so the draw can be verified after the fact.
type Fair struct {
	mu    sync.Mutex
	nonce int
}

type Draw struct {
	ClientSeed string
	ServerSeed string
	Hash       string
	Nonce      int
	Max        int
	Result     int
}

func New() *Fair {
	return &Fair{}
}

// Next returns a number in [0, max).
func (f *Fair) Next(clientSeed string, max int) Draw {
	f.mu.Lock()
	nonce := f.nonce
	f.nonce++
	f.mu.Unlock()

	serverSeed := random.NewRandomString(64)

	return compute(serverSeed, clientSeed, nonce, max)
}

func compute(serverSeed, clientSeed string, nonce, max int) Draw {
	h := hmac.New(sha512.New, []byte(serverSeed))
	h.Write([]byte(clientSeed + "-" + strconv.Itoa(nonce)))
	hash := hex.EncodeToString(h.Sum(nil))

	decimal, _ := strconv.ParseInt(hash[:10], 16, 64)

	return Draw{
		ClientSeed: clientSeed,
		ServerSeed: serverSeed,
		Hash:       hash,
		Nonce:      nonce,
		Max:        max,
		Result:     int(decimal % int64(max)),
	}
}
