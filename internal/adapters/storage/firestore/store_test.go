package firestore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	firestorestore "github.com/PabloGalante/tutorchat/internal/adapters/storage/firestore"
)

// Runs only against the Firestore emulator (FIRESTORE_EMULATOR_HOST).
func TestStoreAgainstEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	store, err := firestorestore.NewStore(ctx, "tutorchat-test", "test_histories")
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Set(ctx, "visitor", []byte(`[{"role":"bot"}]`)))
	got, err = store.Get(ctx, "visitor")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"bot"}]`, string(got))

	require.NoError(t, store.Clear(ctx, "visitor"))
	require.NoError(t, store.Clear(ctx, "visitor"))
	got, err = store.Get(ctx, "visitor")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewStoreRequiresProject(t *testing.T) {
	_, err := firestorestore.NewStore(context.Background(), "", "")
	assert.Error(t, err)
}
