package detect

import (
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// FromEnvironment builds a detection context for dir, resolving it to
// an absolute path and discovering the origin remote of the enclosing
// git repository when one exists. Absence of a repository or remote is
// not an error; those signals simply stay empty.
func FromEnvironment(dir string) (Context, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Context{}, err
	}

	return Context{
		WorkingDir:       abs,
		RemoteIdentifier: originRemoteURL(abs),
	}, nil
}

// originRemoteURL returns the first URL of the origin remote for the
// repository containing dir, or "" if there is none.
func originRemoteURL(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}
