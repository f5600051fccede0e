package gitrepo

import (
	"fmt"
	"strings"
)

const (
	sshProtocolPrefixConstant           = "ssh://"
	sshUserDelimiterConstant            = "@"
	sshPathDelimiterConstant            = ":"
	httpsProtocolPrefixConstant         = "https://"
	httpProtocolPrefixConstant          = "http://"
	gitProtocolPrefixConstant           = "git://"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	invalidRemoteURLMessageConstant     = "invalid remote url"
	requiredValueMessageConstant        = "value required"
)

// RemoteProtocol enumerates network git remote protocols.
type RemoteProtocol string

// Supported remote protocols.
const (
	RemoteProtocolSSH   RemoteProtocol = "ssh"
	RemoteProtocolHTTPS RemoteProtocol = "https"
	RemoteProtocolGit   RemoteProtocol = "git"
)

// RemoteURL represents a hosted repository address independent of protocol.
type RemoteURL struct {
	Protocol   RemoteProtocol
	Host       string
	Owner      string
	Repository string
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL converts a hosted remote URL into a structured representation.
// Local paths and file:// URLs are not hosted remotes and fail to parse.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	switch {
	case strings.HasPrefix(trimmedRemote, sshProtocolPrefixConstant):
		return parseSSHRemote(strings.TrimPrefix(trimmedRemote, sshProtocolPrefixConstant), true)
	case strings.HasPrefix(trimmedRemote, httpsProtocolPrefixConstant):
		return parseHostedPath(RemoteProtocolHTTPS, strings.TrimPrefix(trimmedRemote, httpsProtocolPrefixConstant))
	case strings.HasPrefix(trimmedRemote, httpProtocolPrefixConstant):
		return parseHostedPath(RemoteProtocolHTTPS, strings.TrimPrefix(trimmedRemote, httpProtocolPrefixConstant))
	case strings.HasPrefix(trimmedRemote, gitProtocolPrefixConstant):
		return parseHostedPath(RemoteProtocolGit, strings.TrimPrefix(trimmedRemote, gitProtocolPrefixConstant))
	case strings.Contains(trimmedRemote, sshUserDelimiterConstant) && !strings.HasPrefix(trimmedRemote, pathSeparatorConstant):
		return parseSSHRemote(trimmedRemote, false)
	default:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
}

// EquivalentRemoteURLs reports whether two remote strings address the same
// repository, treating ssh and https forms of a hosted repository as equal.
func EquivalentRemoteURLs(first string, second string) bool {
	firstParsed, firstError := ParseRemoteURL(first)
	secondParsed, secondError := ParseRemoteURL(second)
	if firstError != nil || secondError != nil {
		return strings.TrimSuffix(strings.TrimSpace(first), pathSeparatorConstant) == strings.TrimSuffix(strings.TrimSpace(second), pathSeparatorConstant)
	}
	return strings.EqualFold(firstParsed.Host, secondParsed.Host) &&
		strings.EqualFold(firstParsed.Owner, secondParsed.Owner) &&
		strings.EqualFold(firstParsed.Repository, secondParsed.Repository)
}

func parseSSHRemote(remote string, schemeForm bool) (RemoteURL, error) {
	userSplitIndex := strings.Index(remote, sshUserDelimiterConstant)
	if userSplitIndex == -1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	hostAndPath := remote[userSplitIndex+1:]
	delimiter := sshPathDelimiterConstant
	if schemeForm {
		delimiter = pathSeparatorConstant
	}
	pathSplitIndex := strings.Index(hostAndPath, delimiter)
	if pathSplitIndex == -1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	host := hostAndPath[:pathSplitIndex]
	if portIndex := strings.Index(host, sshPathDelimiterConstant); schemeForm && portIndex != -1 {
		host = host[:portIndex]
	}
	owner, repository, parseError := splitOwnerAndRepository(hostAndPath[pathSplitIndex+1:])
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: RemoteProtocolSSH, Host: host, Owner: owner, Repository: repository}, nil
}

func parseHostedPath(protocol RemoteProtocol, remote string) (RemoteURL, error) {
	slashIndex := strings.Index(remote, pathSeparatorConstant)
	if slashIndex == -1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	host := remote[:slashIndex]
	if userIndex := strings.LastIndex(host, sshUserDelimiterConstant); userIndex != -1 {
		host = host[userIndex+1:]
	}
	owner, repository, parseError := splitOwnerAndRepository(remote[slashIndex+1:])
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: protocol, Host: host, Owner: owner, Repository: repository}, nil
}

func splitOwnerAndRepository(path string) (string, string, error) {
	trimmedPath := strings.Trim(path, pathSeparatorConstant)
	separatorIndex := strings.LastIndex(trimmedPath, pathSeparatorConstant)
	if separatorIndex <= 0 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	repository := strings.TrimSuffix(trimmedPath[separatorIndex+1:], gitSuffixConstant)
	if len(repository) == 0 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	return trimmedPath[:separatorIndex], repository, nil
}
