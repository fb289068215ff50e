package openpgp

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnlockedSecretKeyBypassesPassphrase(t *testing.T) {
	var fp [20]byte
	called := false
	decode := func(secret []byte) (SecretKeyRepr, error) {
		called = true
		return EdDSASecretKey{}, nil
	}
	locked := NewUnlockedSecretKey(fp, nil, decode)

	var bodySeen SecretKeyRepr
	err := locked.Unlock(func() ([]byte, error) {
		t.Fatal("passphrase callback must not be invoked for an unlocked key")
		return nil, nil
	}, func(repr SecretKeyRepr) error {
		bodySeen = repr
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
	require.IsType(t, EdDSASecretKey{}, bodySeen)
}

func TestLockedSecretKeyUnlockRoundTrip(t *testing.T) {
	secretScalar := make([]byte, 32)
	_, err := rand.Read(secretScalar)
	require.NoError(t, err)

	s2k, err := defaultProtectionS2K(rand.Reader)
	require.NoError(t, err)
	passphrase := []byte("hunter2")

	protected, err := ProtectSecretKey(rand.Reader, passphrase, secretScalar, AES256, s2k)
	require.NoError(t, err)

	var fp [20]byte
	decode := func(secret []byte) (SecretKeyRepr, error) {
		var scalar [32]byte
		copy(scalar[:], secret)
		return ECDHSecretKey{Secret: scalar}, nil
	}
	locked := NewLockedSecretKey(fp, protected.CipherAlg, protected.S2K, protected.IV, protected.Encrypted, decode)

	var recovered [32]byte
	err = locked.Unlock(func() ([]byte, error) {
		return passphrase, nil
	}, func(repr SecretKeyRepr) error {
		recovered = repr.(ECDHSecretKey).Secret
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, secretScalar, recovered[:])
}

func TestLockedSecretKeyWrongPassphrase(t *testing.T) {
	secretScalar := make([]byte, 32)
	_, err := rand.Read(secretScalar)
	require.NoError(t, err)

	s2k, err := defaultProtectionS2K(rand.Reader)
	require.NoError(t, err)

	protected, err := ProtectSecretKey(rand.Reader, []byte("correct"), secretScalar, AES256, s2k)
	require.NoError(t, err)

	var fp [20]byte
	decode := func(secret []byte) (SecretKeyRepr, error) {
		return EdDSASecretKey{}, nil
	}
	locked := NewLockedSecretKey(fp, protected.CipherAlg, protected.S2K, protected.IV, protected.Encrypted, decode)

	err = locked.Unlock(func() ([]byte, error) {
		return []byte("wrong"), nil
	}, func(repr SecretKeyRepr) error {
		t.Fatal("body must not run when the passphrase is wrong")
		return nil
	})
	require.ErrorIs(t, err, ErrWrongKeyID)
}

func TestLockedSecretKeyNilPassphraseFails(t *testing.T) {
	var fp [20]byte
	locked := NewLockedSecretKey(fp, AES256, S2K{Mode: S2KSimple}, make([]byte, 16), make([]byte, 48), func([]byte) (SecretKeyRepr, error) {
		return EdDSASecretKey{}, nil
	})

	err := locked.Unlock(func() ([]byte, error) {
		return nil, nil
	}, func(repr SecretKeyRepr) error {
		t.Fatal("body must not run without a passphrase")
		return nil
	})
	require.ErrorIs(t, err, ErrWrongKeyID)
}

func TestLockedSecretKeyZeroizesOnPanic(t *testing.T) {
	secretScalar := make([]byte, 32)
	_, err := rand.Read(secretScalar)
	require.NoError(t, err)

	s2k, err := defaultProtectionS2K(rand.Reader)
	require.NoError(t, err)
	protected, err := ProtectSecretKey(rand.Reader, []byte("pw"), secretScalar, AES256, s2k)
	require.NoError(t, err)

	var fp [20]byte
	var seen []byte
	locked := NewLockedSecretKey(fp, protected.CipherAlg, protected.S2K, protected.IV, protected.Encrypted, func(secret []byte) (SecretKeyRepr, error) {
		seen = secret // aliases Unlock's plaintext buffer
		return EdDSASecretKey{}, nil
	})

	err = locked.Unlock(func() ([]byte, error) {
		return []byte("pw"), nil
	}, func(repr SecretKeyRepr) error {
		panic("simulated failure mid-unlock")
	})
	require.Error(t, err)
	require.Len(t, seen, 32)
	require.Equal(t, make([]byte, 32), seen)
}
