// Copyright 2025 Poiesic Systems
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

// Package queue provides a durable FIFO job queue on BadgerDB and a worker
// pool consumer with redelivery.
//
// Enqueue is idempotent per job DocID until the job is acknowledged, so a
// user mashing the upload button creates one job and a re-submission during
// processing cannot start a second concurrent run for the same document.
// Delivery is at-least-once: jobs stay in the store until Ack, a handler
// error requeues the job with exponential backoff until a maximum attempt
// count, after which the job is acked and logged, and an unacknowledged job
// is redelivered after a restart. Handlers that must not run twice therefore
// have to tolerate redelivery.
package queue
