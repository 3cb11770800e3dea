package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medeasy/marketplace/internal/database"
	"medeasy/marketplace/internal/migrations"
)

const catalog = `brand id,brand name,type,slug,dosage form,generic,strength,manufacturer,package
1,Napa,allopathic,napa,Tablet,Paracetamol,500 mg,Beximco,10 x 10
2,Seclo,allopathic,seclo,Capsule,Omeprazole,20 mg,Square,6 x 10
3,,allopathic,blank,Tablet,Nothing,1 mg,Nobody,1
4,Short,allopathic
1,Napa Duplicate,allopathic,napa,Tablet,Paracetamol,500 mg,Beximco,10 x 10
`

func TestLoadMedicines(t *testing.T) {
	db, err := database.Connect("file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	ctx := context.Background()

	n, err := LoadMedicines(ctx, db, strings.NewReader(catalog), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "blank, short and duplicate rows are skipped")

	var generic string
	require.NoError(t, db.Get(&generic, `SELECT generic_name FROM medicines WHERE brand_name = 'Seclo'`))
	assert.Equal(t, "Omeprazole", generic)

	n, err = LoadMedicines(ctx, db, strings.NewReader(catalog), zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, n, "reloading is idempotent")
}

func TestLoadMedicinesFile(t *testing.T) {
	db, err := database.Connect("file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	ctx := context.Background()

	n, err := LoadMedicinesFile(ctx, db, filepath.Join(t.TempDir(), "missing.csv"), zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, n)

	path := filepath.Join(t.TempDir(), "medicine.csv")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))
	n, err = LoadMedicinesFile(ctx, db, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
