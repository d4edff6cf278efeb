// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

// Lifecycle participation is driven entirely by tags. Binding keys are
// a naming convention, never a discovery mechanism: a binding named
// "servers.anything" without [TagLifeCycleObserver] stays out of the
// lifecycle, a binding with it joins no matter how it is keyed.
const (
	// TagLifeCycleObserver marks a binding as a lifecycle participant.
	TagLifeCycleObserver = "lifeCycleObserver"

	// TagLifeCycleObserverGroup names the ordering group of a
	// lifecycle participant. Grouped participants start group by
	// group, in registration order within each group. Participants
	// without a group form the unordered batch, started in parallel
	// after all groups.
	TagLifeCycleObserverGroup = "lifeCycleObserverGroup"

	// TagServer additionally marks a lifecycle participant as a
	// [Server].
	TagServer = "server"
)

const (
	// NamespaceComponents prefixes the binding keys of mounted
	// components.
	NamespaceComponents = "components"

	// NamespaceServers prefixes the binding keys of registered
	// servers.
	NamespaceServers = "servers"

	// NamespaceLifeCycleObservers prefixes the binding keys of
	// registered observers.
	NamespaceLifeCycleObservers = "lifeCycleObservers"

	// KeyApplication is the binding key under which an [Application]
	// binds itself, so constructors can depend on the running
	// application.
	KeyApplication = "application.instance"
)

// ComponentKey returns the binding key for the named component.
func ComponentKey(name string) string {
	return NamespaceComponents + "." + name
}

// ServerKey returns the binding key for the named server.
func ServerKey(name string) string {
	return NamespaceServers + "." + name
}

// ObserverKey returns the binding key for the named observer.
func ObserverKey(name string) string {
	return NamespaceLifeCycleObservers + "." + name
}

// ConfigKey returns the configuration slot key for a binding key. The
// slot conventionally holds a [*config.Manager] but may hold any value,
// see [Application.UnmarshalConfig].
func ConfigKey(key string) string {
	return key + ":config"
}
