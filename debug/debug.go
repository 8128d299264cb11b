/*
 * Copyright 2026 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package debug

import (
	"github.com/cloudwego/bcopt/internal/driver"
)

// A Stats records cumulative statistics about every optimizer run in the process.
type Stats struct {
	Runs   int
	Passes int
	Edits  EditStats
}

// An EditStats records statistics about the edits of the transformations.
type EditStats struct {
	Applied    int
	Refused    int
	RolledBack int
}

// GetStats returns statistics of the optimizer.
func GetStats() Stats {
	return Stats{
		Runs:   int(driver.RunCount.Load()),
		Passes: int(driver.PassCount.Load()),
		Edits: EditStats{
			Applied:    int(driver.ChangeCount.Load()),
			Refused:    int(driver.RefusalCount.Load()),
			RolledBack: int(driver.ViolationCount.Load()),
		},
	}
}
