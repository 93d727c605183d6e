package kube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
	"github.com/canonical/grafana-k8s-operator/internal/naming"
)

// Annotations owned by the operator.
const (
	AnnotationContentHash = "grafana-operator/content-hash"
	AnnotationPaths       = "grafana-operator/paths"
	AnnotationRestartedAt = "grafana-operator/restarted-at"
)

// Workload implements model.WorkloadPort on top of a Deployment. Plain
// files are projected through a ConfigMap, secret files through a
// Secret; both are mounted into the workload pod by the deployment
// manifest the operator ships with.
type Workload struct {
	client    *Client
	namespace string
	app       string
}

// NewWorkload returns a workload handle for the named deployment group.
func NewWorkload(client *Client, namespace, app string) *Workload {
	return &Workload{client: client, namespace: namespace, app: app}
}

func (w *Workload) filesName() string   { return w.app + "-files" }
func (w *Workload) secretsName() string { return w.app + "-secrets" }

// keyForPath derives a ConfigMap/Secret data key from an absolute path.
// The original path is kept in the paths annotation.
func keyForPath(path string) string {
	return "f" + naming.ShortHash([]byte(path), 10)
}

// WriteFile stores one synthesized file, reporting whether workload
// state actually changed.
func (w *Workload) WriteFile(ctx context.Context, file model.WorkloadFile) (bool, error) {
	if file.Secret {
		return w.writeSecretFile(ctx, file)
	}
	return w.writeConfigFile(ctx, file)
}

func (w *Workload) writeConfigFile(ctx context.Context, file model.WorkloadFile) (bool, error) {
	cms := w.client.Clientset.CoreV1().ConfigMaps(w.namespace)
	key := keyForPath(file.Path)

	cm, err := cms.Get(ctx, w.filesName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: w.filesName(), Namespace: w.namespace},
			Data:       map[string]string{key: string(file.Content)},
		}
		setPaths(&cm.ObjectMeta, map[string]string{key: file.Path})
		setContentHash(&cm.ObjectMeta, cm.Data)
		if _, err := cms.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return false, fmt.Errorf("create configmap %s: %w", w.filesName(), err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get configmap %s: %w", w.filesName(), err)
	}
	if cm.Data[key] == string(file.Content) {
		return false, nil
	}
	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[key] = string(file.Content)
	paths := getPaths(cm.ObjectMeta)
	paths[key] = file.Path
	setPaths(&cm.ObjectMeta, paths)
	setContentHash(&cm.ObjectMeta, cm.Data)
	if _, err := cms.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("update configmap %s: %w", w.filesName(), err)
	}
	return true, nil
}

func (w *Workload) writeSecretFile(ctx context.Context, file model.WorkloadFile) (bool, error) {
	secrets := w.client.Clientset.CoreV1().Secrets(w.namespace)
	key := keyForPath(file.Path)

	sec, err := secrets.Get(ctx, w.secretsName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		sec = &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: w.secretsName(), Namespace: w.namespace},
			Data:       map[string][]byte{key: file.Content},
		}
		setPaths(&sec.ObjectMeta, map[string]string{key: file.Path})
		if _, err := secrets.Create(ctx, sec, metav1.CreateOptions{}); err != nil {
			return false, fmt.Errorf("create secret %s: %w", w.secretsName(), err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get secret %s: %w", w.secretsName(), err)
	}
	if bytes.Equal(sec.Data[key], file.Content) {
		return false, nil
	}
	if sec.Data == nil {
		sec.Data = map[string][]byte{}
	}
	sec.Data[key] = file.Content
	paths := getPaths(sec.ObjectMeta)
	paths[key] = file.Path
	setPaths(&sec.ObjectMeta, paths)
	if _, err := secrets.Update(ctx, sec, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("update secret %s: %w", w.secretsName(), err)
	}
	return true, nil
}

// RemoveFile drops a previously written file. Removing an absent file is
// not an error.
func (w *Workload) RemoveFile(ctx context.Context, path string) error {
	key := keyForPath(path)

	cms := w.client.Clientset.CoreV1().ConfigMaps(w.namespace)
	cm, err := cms.Get(ctx, w.filesName(), metav1.GetOptions{})
	if err == nil {
		if _, ok := cm.Data[key]; ok {
			delete(cm.Data, key)
			paths := getPaths(cm.ObjectMeta)
			delete(paths, key)
			setPaths(&cm.ObjectMeta, paths)
			setContentHash(&cm.ObjectMeta, cm.Data)
			if _, err := cms.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
				return fmt.Errorf("update configmap %s: %w", w.filesName(), err)
			}
			return nil
		}
	} else if !apierrors.IsNotFound(err) {
		return fmt.Errorf("get configmap %s: %w", w.filesName(), err)
	}

	secrets := w.client.Clientset.CoreV1().Secrets(w.namespace)
	sec, err := secrets.Get(ctx, w.secretsName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get secret %s: %w", w.secretsName(), err)
	}
	if _, ok := sec.Data[key]; !ok {
		return nil
	}
	delete(sec.Data, key)
	paths := getPaths(sec.ObjectMeta)
	delete(paths, key)
	setPaths(&sec.ObjectMeta, paths)
	if _, err := secrets.Update(ctx, sec, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update secret %s: %w", w.secretsName(), err)
	}
	return nil
}

// ListFiles returns the paths of operator-written files under dir.
func (w *Workload) ListFiles(ctx context.Context, dir string) ([]string, error) {
	prefix := strings.TrimRight(dir, "/") + "/"
	var out []string

	cm, err := w.client.Clientset.CoreV1().ConfigMaps(w.namespace).Get(ctx, w.filesName(), metav1.GetOptions{})
	if err == nil {
		for _, path := range getPaths(cm.ObjectMeta) {
			if strings.HasPrefix(path, prefix) {
				out = append(out, path)
			}
		}
	} else if !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("get configmap %s: %w", w.filesName(), err)
	}

	sec, err := w.client.Clientset.CoreV1().Secrets(w.namespace).Get(ctx, w.secretsName(), metav1.GetOptions{})
	if err == nil {
		for _, path := range getPaths(sec.ObjectMeta) {
			if strings.HasPrefix(path, prefix) {
				out = append(out, path)
			}
		}
	} else if !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("get secret %s: %w", w.secretsName(), err)
	}

	sort.Strings(out)
	return out, nil
}

// SetEnvironment replaces the container environment of the named
// deployment, reporting whether anything changed.
func (w *Workload) SetEnvironment(ctx context.Context, service string, env map[string]string) (bool, error) {
	deps := w.client.Clientset.AppsV1().Deployments(w.namespace)
	dep, err := deps.Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return false, fmt.Errorf("get deployment %s: %w", service, err)
	}

	hash := hashEnv(env)
	if dep.Spec.Template.Annotations[AnnotationContentHash] == hash {
		return false, nil
	}

	idx := containerIndex(dep.Spec.Template.Spec.Containers, service)
	if idx < 0 {
		return false, fmt.Errorf("deployment %s has no container %q", service, service)
	}
	dep.Spec.Template.Spec.Containers[idx].Env = envVars(env)
	if dep.Spec.Template.Annotations == nil {
		dep.Spec.Template.Annotations = map[string]string{}
	}
	dep.Spec.Template.Annotations[AnnotationContentHash] = hash

	if _, err := deps.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("update deployment %s: %w", service, err)
	}
	return true, nil
}

// SetResources applies CPU/memory limits to the workload container.
func (w *Workload) SetResources(ctx context.Context, service, cpuLimit, memoryLimit string) (bool, error) {
	limits := corev1.ResourceList{}
	if cpuLimit != "" {
		q, err := resource.ParseQuantity(cpuLimit)
		if err != nil {
			return false, fmt.Errorf("parse cpu limit %q: %w", cpuLimit, err)
		}
		limits[corev1.ResourceCPU] = q
	}
	if memoryLimit != "" {
		q, err := resource.ParseQuantity(memoryLimit)
		if err != nil {
			return false, fmt.Errorf("parse memory limit %q: %w", memoryLimit, err)
		}
		limits[corev1.ResourceMemory] = q
	}

	deps := w.client.Clientset.AppsV1().Deployments(w.namespace)
	dep, err := deps.Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return false, fmt.Errorf("get deployment %s: %w", service, err)
	}
	idx := containerIndex(dep.Spec.Template.Spec.Containers, service)
	if idx < 0 {
		return false, fmt.Errorf("deployment %s has no container %q", service, service)
	}
	if resourceListsEqual(dep.Spec.Template.Spec.Containers[idx].Resources.Limits, limits) {
		return false, nil
	}
	dep.Spec.Template.Spec.Containers[idx].Resources.Limits = limits
	if _, err := deps.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("update deployment %s: %w", service, err)
	}
	return true, nil
}

func resourceListsEqual(a, b corev1.ResourceList) bool {
	if len(a) != len(b) {
		return false
	}
	for name, qty := range a {
		other, ok := b[name]
		if !ok || qty.Cmp(other) != 0 {
			return false
		}
	}
	return true
}

// Restart bumps the pod template restart annotation, the same mechanism
// kubectl rollout restart uses.
func (w *Workload) Restart(ctx context.Context, service string) error {
	patch := fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		AnnotationRestartedAt, time.Now().UTC().Format(time.RFC3339),
	)
	_, err := w.client.Clientset.AppsV1().Deployments(w.namespace).Patch(
		ctx, service, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("restart deployment %s: %w", service, err)
	}
	logging.FromContext(ctx).Info(ctx, "workload restart requested", "deployment", service)
	return nil
}

func getPaths(meta metav1.ObjectMeta) map[string]string {
	paths := map[string]string{}
	if raw, ok := meta.Annotations[AnnotationPaths]; ok {
		_ = json.Unmarshal([]byte(raw), &paths)
	}
	return paths
}

func setPaths(meta *metav1.ObjectMeta, paths map[string]string) {
	raw, _ := json.Marshal(paths)
	if meta.Annotations == nil {
		meta.Annotations = map[string]string{}
	}
	meta.Annotations[AnnotationPaths] = string(raw)
}

func setContentHash(meta *metav1.ObjectMeta, data map[string]string) {
	if meta.Annotations == nil {
		meta.Annotations = map[string]string{}
	}
	meta.Annotations[AnnotationContentHash] = hashEnv(data)
}

func containerIndex(containers []corev1.Container, name string) int {
	for i, c := range containers {
		if c.Name == name {
			return i
		}
	}
	if len(containers) == 1 {
		return 0
	}
	return -1
}

var _ model.WorkloadPort = (*Workload)(nil)
