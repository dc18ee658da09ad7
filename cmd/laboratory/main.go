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

// Package main is the single binary every TYPE of the dump-processing
// pipeline launches as: the master that dispatches ECS tasks across a
// dump's files, the worker roles those tasks run, and the two
// distributed-sort handlers a Lambda invocation would otherwise call.
// TYPE is read from the environment, since workers are spawned with an
// environment rather than arguments; the master's own launch
// parameters double as flags since it is started directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amacal/laboratory/internal/ftpsource"
	"github.com/amacal/laboratory/internal/objectstore"
	"github.com/amacal/laboratory/internal/paramstore"
	"github.com/amacal/laboratory/internal/retry"
	"github.com/amacal/laboratory/internal/roles"
	"github.com/amacal/laboratory/internal/taskrunner"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/internal/tokenqueue"
)

const (
	retryBase = 200 * time.Millisecond
	retryMax  = 10 * time.Second
)

func main() {
	typeFlag := flag.String("type", os.Getenv("TYPE"), "role to run: master, worker-ftp, worker-json, worker-sort, worker-sort-distributed, quick-sort, kway-merge, test")
	paramsPath := flag.String("params", "params.yaml", "path to the local parameter store file (bucket_name, security_group, vpc_subnet, task_arn, cluster_arn)")
	rowtag := flag.String("rowtag", "page", "XML element name worker-json flattens into one NDJSON record per match")
	tag := flag.String("tag", "title", "NDJSON field master-sort and worker-sort order records by")
	ftpPerMirror := flag.Int("ftp_per_mirror", 3, "concurrent FTP sessions allowed per configured mirror")
	jsonSlots := flag.Int("json_slots", 15, "concurrent worker-json conversions allowed at once")
	metricsAddr := flag.String("metrics_addr", os.Getenv("METRICS_ADDR"), "address to serve Prometheus /metrics on (blank disables)")
	redisAddr := flag.String("redis_addr", os.Getenv("REDIS_ADDR"), "redis address backing the cross-process token queues (blank keeps them in-process)")
	flag.Parse()

	telemetry.ServeMetrics(*metricsAddr)

	// None of the roles below accept mid-flight cancellation (every
	// pipeline Start call is synchronous), so an interrupt here just
	// logs and lets the current unit of work run to completion before
	// the process exits.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("interrupt received; finishing current unit of work")
	}()

	store := objectstore.NewMemStore()

	switch *typeFlag {
	case "master", "test":
		runMaster(store, *paramsPath, *rowtag, *tag, *ftpPerMirror, *jsonSlots, *redisAddr)
	case "worker-ftp":
		client := ftpsource.NewLocal(nil, 0)
		mustRun(roles.WorkerFtp(store, client, env("NAME"), env("HOST"), env("DIRECTORY"), env("BUCKET"), env("INPUT"), env("OUTPUT")))
	case "worker-json":
		mustRun(roles.WorkerJson(store, env("NAME"), env("ROWTAG"), env("BUCKET"), env("INPUT"), env("OUTPUT")))
	case "worker-sort":
		mustRun(roles.WorkerSort(store, env("NAME"), env("TAG"), env("BUCKET"), env("INPUT"), env("OUTPUT")))
	case "worker-sort-distributed":
		deps := roles.DistributedSortDeps{
			Store:    store,
			Function: roles.NewLocalFunction(roles.LambdaDeps{Store: store, Locator: &objectstore.LineLocator{Store: store}}),
			Retry:    retry.Adaptive{Attempts: 10, Base: retryBase, Max: retryMax},
		}
		mustRun(roles.WorkerSortDistributed(deps, env("NAME"), env("TAG"), env("BUCKET"), env("INPUT"), env("OUTPUT")))
	case "quick-sort", "kway-merge":
		runLambdaEvent(store, *typeFlag)
	case "":
		log.Fatal("TYPE not set: pass -type or set the TYPE environment variable")
	default:
		log.Fatalf("unrecognized TYPE %q", *typeFlag)
	}
}

func env(name string) string { return os.Getenv(name) }

func mustRun(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// runMaster loads the master's own launch parameters from the local
// parameter file, lists the dump's recognized shards over FTP, and
// fans MasterGet out across them with bounded concurrency.
func runMaster(store objectstore.Store, paramsPath, rowtag, tag string, ftpPerMirror, jsonSlots int, redisAddr string) {
	params, err := paramstore.LoadLocalFile(paramsPath)
	if err != nil {
		log.Fatalf("loading %s: %v", paramsPath, err)
	}

	ctx := context.Background()
	bucket, _ := params.Value(ctx, "/wikipedia/bucket_name")
	securityGroup, _ := params.Value(ctx, "/wikipedia/security_group")
	vpcSubnet, _ := params.Value(ctx, "/wikipedia/vpc_subnet")
	taskArn, _ := params.Value(ctx, "/wikipedia/task_arn")
	clusterArn, _ := params.Value(ctx, "/wikipedia/cluster_arn")

	mirrors := []roles.FtpLocation{
		{Host: "ftpmirror.your.org", Directory: "pub/wikimedia/dumps/enwiki/20201120/"},
		{Host: "ftp.acc.umu.se", Directory: "mirror/wikimedia.org/dumps/enwiki/20201120/"},
		{Host: "dumps.wikimedia.your.org", Directory: "pub/wikimedia/dumps/enwiki/20201120/"},
	}
	jsonResources := make([]string, jsonSlots)
	for i := range jsonResources {
		jsonResources[i] = fmt.Sprintf("json-%d", i)
	}

	var ftpQueue, jsonQueue tokenqueue.Queue
	if redisAddr != "" {
		client := tokenqueue.NewGoRedisClient(redis.NewClient(&redis.Options{Addr: redisAddr}))
		if err := tokenqueue.Seed(ctx, client, "ftp", roles.FtpQueueResources(mirrors, ftpPerMirror)); err != nil {
			log.Fatalf("seeding ftp queue: %v", err)
		}
		if err := tokenqueue.Seed(ctx, client, "json", jsonResources); err != nil {
			log.Fatalf("seeding json queue: %v", err)
		}
		ftpQueue = tokenqueue.NewRedis(client, "ftp")
		jsonQueue = tokenqueue.NewRedis(client, "json")
	} else {
		ftpQueue = roles.NewFtpQueue(mirrors, ftpPerMirror)
		jsonQueue = tokenqueue.NewLocal(jsonResources)
	}

	runner := taskrunner.NewLocal(func(task string, taskEnv map[string]string) (string, error) {
		return dispatchEcsTask(store, task, taskEnv)
	})

	deps := roles.ClusterDeps{
		Store:         store,
		Runner:        runner,
		Bucket:        bucket,
		Cluster:       clusterArn,
		Task:          taskArn,
		SecurityGroup: securityGroup,
		VpcSubnet:     vpcSubnet,
		Retry:         retry.Adaptive{Attempts: 10, Base: retryBase, Max: retryMax},
	}

	names, err := roles.FetchNames(ftpsource.NewLocal(nil, 0), mirrors[1].Host, mirrors[1].Directory)
	if err != nil {
		log.Fatalf("fetch_names: %v", err)
	}
	if err := roles.RunMasterGetAll(deps, ftpQueue, jsonQueue, names, rowtag); err != nil {
		log.Fatal(err)
	}
	if err := roles.RunMasterSortAll(deps, names, tag); err != nil {
		log.Fatal(err)
	}
}

// dispatchEcsTask is the single-binary counterpart of launching a
// container task: it runs the requested worker role synchronously,
// in-process, against the same store the master's own idempotency
// checks read from.
func dispatchEcsTask(store objectstore.Store, _ string, taskEnv map[string]string) (string, error) {
	switch taskEnv["TYPE"] {
	case "worker-ftp":
		client := ftpsource.NewLocal(nil, 0)
		return "", roles.WorkerFtp(store, client, taskEnv["NAME"], taskEnv["HOST"], taskEnv["DIRECTORY"], taskEnv["BUCKET"], taskEnv["INPUT"], taskEnv["OUTPUT"])
	case "worker-json":
		return "", roles.WorkerJson(store, taskEnv["NAME"], taskEnv["ROWTAG"], taskEnv["BUCKET"], taskEnv["INPUT"], taskEnv["OUTPUT"])
	case "worker-sort":
		return "", roles.WorkerSort(store, taskEnv["NAME"], taskEnv["TAG"], taskEnv["BUCKET"], taskEnv["INPUT"], taskEnv["OUTPUT"])
	default:
		return "", fmt.Errorf("main: unrecognized task TYPE %q", taskEnv["TYPE"])
	}
}

// runLambdaEvent decodes a LambdaEvent JSON document from the EVENT
// environment variable and runs it through roles.Handler, printing the
// resulting envelope item to stdout as JSON — the single-binary
// counterpart of invoking the distributed sort's Lambda handler
// directly, without a real Lambda runtime.
func runLambdaEvent(store objectstore.Store, eventType string) {
	raw := os.Getenv("EVENT")
	var payload roles.LambdaPayload
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			log.Fatalf("decoding EVENT: %v", err)
		}
	}
	payload.Type = eventType

	out, err := roles.Handler(roles.LambdaDeps{Store: store, Locator: &objectstore.LineLocator{Store: store}}, payload.ToEvent())
	if err != nil {
		log.Fatal(err)
	}
	encoded, _ := json.Marshal(out)
	fmt.Println(string(encoded))
}
