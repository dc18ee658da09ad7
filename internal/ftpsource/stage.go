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
	"context"
	"fmt"
	"time"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// noopInterval is how long FtpDownload lets the control connection
// sit idle during a long RETR before sending a keepalive NOOP.
const noopInterval = 60 * time.Second

// FtpDownload mirrors a single remote file named by the incoming
// item's "name" field over FTP, forwarding the retrieved bytes
// downstream as they arrive. It sends an idle NOOP on the control
// connection whenever more than noopInterval has elapsed since the
// last one, to keep the session alive through a slow transfer.
type FtpDownload struct {
	Client    Client
	Host      string
	Directory string

	prev    *pipeline.ItemPipe
	next    *pipeline.BytePipe
	metrics *telemetry.Metrics

	lastTouch time.Time
	err       error
}

func (s *FtpDownload) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *FtpDownload) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *FtpDownload) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.BytePipe)
	s.metrics = metrics
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *FtpDownload) changed() {
	if s.err != nil {
		return
	}
	items := s.prev.Read(1)
	if len(items) == 0 {
		return
	}
	name, _ := items[0]["name"].(string)

	if err := s.Client.Login(context.Background(), s.Host); err != nil {
		s.err = fmt.Errorf("ftpsource: login to %s: %w", s.Host, err)
		return
	}
	if err := s.Client.Cwd(context.Background(), s.Directory); err != nil {
		s.err = fmt.Errorf("ftpsource: cwd %s: %w", s.Directory, err)
		return
	}

	s.metrics.Log("download started %s %s", s.Directory, name)
	s.lastTouch = time.Now()
	err := s.Client.Retrieve(context.Background(), name, func(chunk []byte) {
		s.next.Append(chunk)
		s.touch()
	})
	if err != nil {
		s.err = fmt.Errorf("ftpsource: retrieve %s: %w", name, err)
		return
	}
	s.metrics.Log("download completed %s %s", s.Directory, name)
}

func (s *FtpDownload) touch() {
	if time.Since(s.lastTouch) > noopInterval {
		_ = s.Client.Noop(context.Background())
		s.lastTouch = time.Now()
	}
}

func (s *FtpDownload) Flush() error {
	if s.Client != nil {
		_ = s.Client.Quit(context.Background())
	}
	return s.err
}
