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


// Package cache provides the process-local TTL caches shared by concurrent
// training runs and chat queries.
//
// A TTL cache is an explicitly constructed value with its own lifecycle.
// Construct one per process (or one per test) and pass it to the components
// that need it; there is no package-level instance.
package cache
