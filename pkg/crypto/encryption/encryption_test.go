package encryption

import (
	"testing"

	"github.com/dkgmesh/dkg-node/pkg/crypto/scalar"
)

func TestSharedKeyIsSymmetric(t *testing.T) {
	sa := scalar.Random()
	sb := scalar.Random()
	pkA := FromRawScalar(sa)
	pkB := FromRawScalar(sb)

	ekAB := ToEncryptionKey(pkB, sa)
	ekBA := ToEncryptionKey(pkA, sb)

	if !ekAB.K.Equal(ekBA.K) {
		t.Fatalf("shared key is not symmetric")
	}
}

func TestIsCorrectAcceptsGenuineSharedKey(t *testing.T) {
	sCreator := scalar.Random()
	sIssuer := scalar.Random()
	pkCreator := FromRawScalar(sCreator)
	pkIssuer := FromRawScalar(sIssuer)

	ek := ToEncryptionKey(pkCreator, sIssuer)
	if !ek.IsCorrect(pkCreator, pkIssuer) {
		t.Fatalf("IsCorrect rejected a genuine shared key")
	}
}

func TestIsCorrectRejectsForgedKey(t *testing.T) {
	pkCreator := FromRawScalar(scalar.Random())
	pkIssuer := FromRawScalar(scalar.Random())

	forged := EncryptionKey{K: scalar.Suite.G1().Point().Mul(scalar.Random(), nil)}
	if forged.IsCorrect(pkCreator, pkIssuer) {
		t.Fatalf("IsCorrect accepted a forged shared key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sCreator := scalar.Random()
	sIssuer := scalar.Random()
	pkIssuer := FromRawScalar(sIssuer)

	dealerEK := ToEncryptionKey(pkIssuer, sCreator)

	var share [scalar.Len]byte
	for i := range share {
		share[i] = byte(i)
	}

	ciphertext, err := dealerEK.Encrypt(share)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	pkCreator := FromRawScalar(sCreator)
	recipientEK := ToEncryptionKey(pkCreator, sIssuer)

	opened, err := recipientEK.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if *opened != share {
		t.Fatalf("decrypted share does not match original")
	}
}

func TestDecryptFailsWithWrongKey(t *testing.T) {
	sCreator := scalar.Random()
	sIssuer := scalar.Random()
	pkIssuer := FromRawScalar(sIssuer)
	ek := ToEncryptionKey(pkIssuer, sCreator)

	var share [scalar.Len]byte
	ciphertext, err := ek.Encrypt(share)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	wrongEK := ToEncryptionKey(pkIssuer, scalar.Random())
	if _, err := wrongEK.Decrypt(ciphertext); err == nil {
		t.Fatalf("expected decryption with wrong key to fail")
	}
}
