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

package bcopt

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/cloudwego/bcopt/classfile"
)

// ClassFile is a class loaded from a directory tree.
type ClassFile struct {
	Path  string
	Class *classfile.Class
}

// Classes returns the classes of the files.
func Classes(files []ClassFile) []*classfile.Class {
	ret := make([]*classfile.Class, len(files))
	for i, f := range files {
		ret[i] = f.Class
	}
	return ret
}

// ReadDir parses every ".class" file below dir. Paths are kept relative to
// dir and the result is sorted by path.
func ReadDir(dir string) (ret []ClassFile, err error) {
	seen := make(map[string]string)
	werr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}

		/* parse the class */
		rel, _ := filepath.Rel(dir, path)
		buf, rerr := os.ReadFile(path)
		if rerr != nil {
			multierr.AppendInto(&err, FileError{Path: path, Err: rerr})
			return nil
		}
		c, perr := classfile.ParseBytes(buf)
		if perr != nil {
			multierr.AppendInto(&err, FileError{Path: path, Err: perr})
			return nil
		}

		/* every class is defined only once */
		if p, ok := seen[c.Name]; ok {
			multierr.AppendInto(&err, DuplicateError{Class: c.Name, Paths: [2]string{p, rel}})
			return nil
		}
		seen[c.Name] = rel
		ret = append(ret, ClassFile{Path: rel, Class: c})
		return nil
	})

	/* a directory that cannot be walked */
	if werr != nil {
		multierr.AppendInto(&err, FileError{Path: dir, Err: werr})
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Path < ret[j].Path
	})
	return
}

// WriteDir serializes the classes below dir, at the same relative paths.
func WriteDir(dir string, files []ClassFile) (err error) {
	for _, f := range files {
		path := filepath.Join(dir, f.Path)
		buf, berr := f.Class.Bytes()
		if berr != nil {
			multierr.AppendInto(&err, FileError{Path: path, Err: berr})
			continue
		}
		if merr := os.MkdirAll(filepath.Dir(path), 0755); merr != nil {
			multierr.AppendInto(&err, FileError{Path: path, Err: merr})
			continue
		}
		if werr := os.WriteFile(path, buf, 0644); werr != nil {
			multierr.AppendInto(&err, FileError{Path: path, Err: werr})
		}
	}
	return
}
