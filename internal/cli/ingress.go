package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/shaiso/Shipyard/internal/ingress"
	"github.com/shaiso/Shipyard/internal/kube"
)

// NewIngressCmd создаёт группу команд для таблицы маршрутизации.
func NewIngressCmd(clientFn func() *Client, outputFn func() *Output, connector kube.Connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingress",
		Short: "Inspect and apply ingress routing tables",
	}

	cmd.AddCommand(
		newIngressRouteCmd(clientFn, outputFn),
		newIngressRenderCmd(outputFn),
		newIngressApplyCmd(outputFn, connector),
	)

	return cmd
}

func newIngressRouteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "route [TABLE] HOST PATH",
		Short: "Show which backend receives a request",
		Long: `Show which backend receives a request for HOST and PATH.

With a TABLE file the match is computed locally; with --remote the
routing table of the API server is used.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if remote {
				return cobra.ExactArgs(2)(cmd, args)
			}
			return cobra.ExactArgs(3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			var route RouteResponse
			if remote {
				r, err := clientFn().Route(args[0], args[1])
				if err != nil {
					return err
				}
				route = *r
			} else {
				table, err := ingress.Load(args[0])
				if err != nil {
					return err
				}
				backend, err := table.Route(args[1], args[2])
				if err != nil {
					return err
				}
				route.Host, route.Path = args[1], args[2]
				route.Backend.Service = backend.Service
				route.Backend.Port = backend.Port
				route.Target = backend.String()
			}

			out.Print(
				[]string{"HOST", "PATH", "BACKEND"},
				[][]string{{route.Host, route.Path, route.Target}},
				route,
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the API server instead of reading a table file")

	return cmd
}

func newIngressRenderCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "render TABLE",
		Short: "Print the Ingress manifest for a routing table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			table, err := ingress.Load(args[0])
			if err != nil {
				return err
			}

			ing := table.Ingress()
			if out.jsonMode {
				out.JSON(ing)
				return nil
			}
			data, err := yaml.Marshal(ing)
			if err != nil {
				return fmt.Errorf("marshal ingress: %w", err)
			}
			_, err = out.w.Write(data)
			return err
		},
	}
}

func newIngressApplyCmd(outputFn func() *Output, connector kube.Connector) *cobra.Command {
	var opts kube.ConnectOptions

	cmd := &cobra.Command{
		Use:   "apply TABLE",
		Short: "Create or update the Ingress in the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			table, err := ingress.Load(args[0])
			if err != nil {
				return err
			}

			cluster, err := connector.Connect(cmd.Context(), opts)
			if err != nil {
				return err
			}

			ing := table.Ingress()
			if err := cluster.ApplyIngress(cmd.Context(), ing); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Ingress applied: %s (%d hosts)", ing.Name, len(ing.Spec.Rules)))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default rules if not specified)")
	cmd.Flags().StringVar(&opts.Context, "context", "", "Kubeconfig context")
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "Namespace for tables without one")

	return cmd
}
