package github

import (
	"context"
	"fmt"
	"time"
)

// WorkflowPath is where the provisioned CI workflow lives.
const WorkflowPath = ".github/workflows/ci.yml"

const ciWorkflow = `name: CI

on:
  push:
    branches: [ main ]

jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Run tests
        run: echo "No tests configured"
`

const mitLicense = `MIT License

Copyright (c) %d %s

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`

// EnsureReadme adds a starter README if the repository has none.
func (c *Client) EnsureReadme(ctx context.Context, owner, repo string) error {
	if c.FileExists(ctx, owner, repo, "README.md") {
		return nil
	}
	content := fmt.Sprintf("# %s\n\nCreated with GitSmart.\n", repo)
	return c.UploadFile(ctx, owner, repo, "README.md", []byte(content), "Add README")
}

// EnsureLicense adds an MIT license file if the repository has none.
func (c *Client) EnsureLicense(ctx context.Context, owner, repo string) error {
	if c.FileExists(ctx, owner, repo, "LICENSE") {
		return nil
	}
	content := fmt.Sprintf(mitLicense, time.Now().Year(), owner)
	return c.UploadFile(ctx, owner, repo, "LICENSE", []byte(content), "Add LICENSE")
}

// EnsureWorkflow provisions a minimal GitHub Actions workflow if none exists.
// Returns true when the workflow was already present.
func (c *Client) EnsureWorkflow(ctx context.Context, owner, repo string) (bool, error) {
	if c.FileExists(ctx, owner, repo, WorkflowPath) {
		return true, nil
	}
	return false, c.UploadFile(ctx, owner, repo, WorkflowPath, []byte(ciWorkflow), "Add CI workflow")
}
