// Package plan defines the build descriptor and its YAML form.
//
// A plan names a base image, an ordered set of copy entries, an optional
// dependency installation instruction, and the startup command recorded
// in the produced image. Plans are authored as YAML:
//
//	base: python:3
//	copy:
//	  - src: app
//	    dest: /
//	  - src: requirements.txt
//	    dest: /requirements.txt
//	install:
//	  manifest: /requirements.txt
//	command: [python, main.py]
//
// Loading validates structure only. Whether copy sources exist, whether
// the base image is reachable, and whether the declared dependencies can
// be installed are build-time concerns.
package plan
