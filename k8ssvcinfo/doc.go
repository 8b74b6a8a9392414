// Package k8ssvcinfo shares Kubernetes Service information between charms.
//
// A provider charm announces the name and port of a Service it manages;
// requirer charms read that announcement from the relation's application
// databag. The default endpoint is "k8s-svc-info" on the "k8s-service"
// interface, declared in metadata.yaml:
//
//	requires:
//	  k8s-svc-info:
//	    interface: k8s-service
//	    limit: 1
//
// or, on the providing side:
//
//	provides:
//	  k8s-svc-info:
//	    interface: k8s-service
//
// A requirer reads the information on demand, typically from whatever
// event needs it:
//
//	requirer, err := k8ssvcinfo.NewRequirer(c)
//	...
//	info, err := requirer.ServiceInfo(ctx)
//
// A provider constructed with the Service details keeps related
// applications up to date on its own, publishing whenever a relation is
// created or joined and whenever this unit gains leadership:
//
//	provider, err := k8ssvcinfo.NewProvider(c, k8ssvcinfo.ServiceInfo{
//		Name: "metadata-grpc-service",
//		Port: "8080",
//	})
//
// Charms that learn the Service details late, for example from config,
// publish explicitly with Provider.Send or the package-level Publish.
package k8ssvcinfo
