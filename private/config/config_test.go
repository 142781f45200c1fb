// Copyright 2022 dtnet
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnet/dtnd/pkg/eid"
	"github.com/dtnet/dtnd/private/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dtnd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[general]
id = "node-one"
local_eid = "dtn://node-one"

[log]
level = "debug"

[storage]
workdir = "/tmp/dtnd-test"
max_bytes = 1048576

[network]
auto_connect = 30
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-one", cfg.General.ID)
	assert.Equal(t, eid.MustParse("dtn://node-one"), cfg.General.LocalEID)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, uint64(1048576), cfg.Storage.MaxBytes)
	assert.Equal(t, uint64(30), cfg.Network.AutoConnect)
}

func TestLoadRequiresLocalEID(t *testing.T) {
	path := writeConfig(t, `
[general]
id = "node-one"
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadEID(t *testing.T) {
	path := writeConfig(t, `
[general]
local_eid = "not-an-eid"
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestSampleIsLoadable(t *testing.T) {
	var buf bytes.Buffer
	config.Sample(&buf)
	path := writeConfig(t, buf.String())
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, eid.MustParse("dtn://node-one"), cfg.General.LocalEID)
}
