// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ftpsource

import (
	"bytes"
	"testing"

	"github.com/amacal/laboratory/pkg/pipeline"
)

func TestFtpDownloadStreamsWholeFile(t *testing.T) {
	content := bytes.Repeat([]byte("abcd"), 100)
	client := NewLocal(map[string][]byte{"dump.json.gz": content}, 37)

	p := pipeline.New("ftp", &FtpDownload{Client: client, Host: "ftp.example.test", Directory: "/pub"})
	input := []pipeline.Item{{"name": "dump.json.gz"}}

	if err := p.Funnel().Bind(p.Metrics, p.Metadata); err != nil {
		t.Fatalf("bind error: %v", err)
	}
	p.Funnel().AppendItems(input)
	if err := p.Funnel().Flush(); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	got := p.Funnel().ReadBytes(-1)
	if !bytes.Equal(got, content) {
		t.Fatalf("got %d bytes, want %d", len(got), len(content))
	}
	if client.loggedIn {
		t.Fatalf("expected client to be logged out after Flush")
	}
}

func TestFtpDownloadMissingFileErrors(t *testing.T) {
	client := NewLocal(map[string][]byte{}, 0)
	p := pipeline.New("ftp-missing", &FtpDownload{Client: client, Host: "ftp.example.test", Directory: "/pub"})
	_, err := p.StartItems([]pipeline.Item{{"name": "absent"}})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
