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

// Package ftpsource backs the FtpDownload stage: mirroring a single
// remote file over FTP as a streamed byte download.
package ftpsource

import "context"

// Client is the narrow seam FtpDownload depends on, cut to the
// handful of RFC 959 verbs the mirror step actually issues. A real
// adapter wraps a TCP-based FTP client; Local below is the in-process
// fake used for tests.
type Client interface {
	Login(ctx context.Context, host string) error
	Cwd(ctx context.Context, dir string) error
	// Retrieve streams name's contents, invoking onChunk for every
	// block read, in order.
	Retrieve(ctx context.Context, name string, onChunk func([]byte)) error
	// NList lists the names of every entry in the current directory
	// (the NLST verb).
	NList(ctx context.Context) ([]string, error)
	Noop(ctx context.Context) error
	Quit(ctx context.Context) error
}
